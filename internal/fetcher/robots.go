package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"
)

// CheckPolicy fetches the site's robots.txt and reports whether pageURL may
// be crawled. A disallow returns ErrPolicyDisallowed; an unreachable or
// unparsable policy file is logged and counts as permission.
func (f *Fetcher) CheckPolicy(ctx context.Context, pageURL string) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		return &PermanentError{Err: fmt.Errorf("parse url: %w", err)}
	}
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	if err := f.limiter.Acquire(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return &PermanentError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn("robots.txt unreachable, proceeding", "url", robotsURL, "error", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		f.log.Warn("robots.txt read failed, proceeding", "url", robotsURL, "error", err)
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		f.log.Warn("robots.txt unparsable, proceeding", "url", robotsURL, "error", err)
		return nil
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if !data.TestAgent(path, f.opts.UserAgent) {
		return fmt.Errorf("%w: %s", ErrPolicyDisallowed, path)
	}
	return nil
}
