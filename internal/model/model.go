// Package model defines the domain types used across the application.
package model

import "time"

// Listing represents one car-for-sale record scraped from the source site.
// A value produced by the parser has zero timestamps; the repository owns
// FirstSeenAt and LastSeenAt once the record is persisted.
type Listing struct {
	ExternalID  string
	Title       string
	Price       *float64
	DetailURL   string
	ImageURL    string
	Source      string
	Attributes  Attributes
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// Attributes holds the optional vehicle fields extracted from a listing
// block. Every field may be absent.
type Attributes struct {
	Transmission      string `json:"transmission,omitempty"`
	Mileage           *int   `json:"mileage,omitempty"`
	FirstRegistration *int   `json:"first_registration,omitempty"`
	FuelType          string `json:"fuel_type,omitempty"`
	Power             string `json:"power,omitempty"`
	CO2Emission       string `json:"co2_emission,omitempty"`
	Consumption       string `json:"consumption,omitempty"`
}

// UpsertResult reports whether an upsert created a new record or refreshed
// an existing one.
type UpsertResult int

// Upsert outcomes.
const (
	Inserted UpsertResult = iota + 1
	Updated
)

func (r UpsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}
