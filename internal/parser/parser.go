// Package parser turns fetched listing pages into candidate records.
package parser

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"carwatch/internal/model"
)

// Stats counts the per-page parse outcome.
type Stats struct {
	Blocks  int
	Skipped int
}

// Parser extracts listing records from search result pages.
type Parser struct {
	source string
	log    *slog.Logger
}

// New creates a Parser tagging records with the given source name.
func New(source string, log *slog.Logger) *Parser {
	return &Parser{source: source, log: log}
}

// Parse extracts every listing block from the page body. A block missing its
// external ID or title is skipped and counted, never fatal. Returned records
// carry zero timestamps; the repository sets them on upsert.
func (p *Parser) Parse(pageBody []byte) ([]model.Listing, Stats, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(pageBody))
	if err != nil {
		return nil, Stats{}, fmt.Errorf("parse page: %w", err)
	}

	var (
		listings []model.Listing
		stats    Stats
	)
	doc.Find("article.listing-item").Each(func(i int, sel *goquery.Selection) {
		stats.Blocks++
		listing, ok := p.extractBlock(sel)
		if !ok {
			stats.Skipped++
			return
		}
		listings = append(listings, listing)
	})
	return listings, stats, nil
}

func (p *Parser) extractBlock(sel *goquery.Selection) (model.Listing, bool) {
	externalID := sanitizeString(sel.AttrOr("data-listing-id", ""), maxIDLength)
	if externalID == "" {
		p.log.Warn("listing block without id, skipping")
		return model.Listing{}, false
	}

	title := sanitizeString(sel.Find(".listing-title").First().Text(), maxTitleLength)
	if title == "" {
		p.log.Warn("listing block without title, skipping", "external_id", externalID)
		return model.Listing{}, false
	}

	detailURL := sanitizeURL(sel.Find("a.listing-link").First().AttrOr("href", ""))
	imageURL := sanitizeURL(sel.Find("img.listing-image").First().AttrOr("src", ""))

	listing := model.Listing{
		ExternalID: externalID,
		Title:      title,
		Price:      parsePrice(sel.Find(".listing-price").First().Text()),
		DetailURL:  detailURL,
		ImageURL:   imageURL,
		Source:     p.source,
		Attributes: p.extractAttributes(sel),
	}
	return listing, true
}

func (p *Parser) extractAttributes(sel *goquery.Selection) model.Attributes {
	var attrs model.Attributes
	sel.Find("ul.listing-details li[data-key]").Each(func(i int, li *goquery.Selection) {
		value := sanitizeString(li.Text(), maxStringLength)
		if value == "" {
			return
		}
		switch li.AttrOr("data-key", "") {
		case "transmission":
			attrs.Transmission = value
		case "mileage":
			attrs.Mileage = parseInt(value)
		case "first-registration":
			attrs.FirstRegistration = parseInt(value)
		case "fuel":
			attrs.FuelType = value
		case "power":
			attrs.Power = value
		case "co2":
			attrs.CO2Emission = value
		case "consumption":
			attrs.Consumption = value
		}
	})
	return attrs
}

// sanitizeURL keeps only absolute http(s) URLs within the length limit.
func sanitizeURL(raw string) string {
	raw = sanitizeString(raw, maxURLLength)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return raw
}
