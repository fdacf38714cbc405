// Package source talks to the remote radar site: it resolves the newest
// published frame from the radar page and downloads frame images.
package source

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/creatorstation/radarlcd/internal/frame"
	"github.com/creatorstation/radarlcd/pkg/convert/img"
	"github.com/go-resty/resty/v2"
)

const userAgent = "radarlcd"

type Config struct {
	// PageURL is the radar page carrying the newest image reference.
	PageURL string
	// ImageURLFormat is a fmt pattern taking year, month, day, hour, minute.
	ImageURLFormat string
	// ElementID is the id of the element whose srcset (or src) points at the newest image.
	ElementID string
	Location  *time.Location
	Step      time.Duration

	Timeout      time.Duration
	Retries      int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
}

// HTTPSource is a remote frame source over HTTP.
type HTTPSource struct {
	client *resty.Client
	cfg    Config
}

func NewHTTP(cfg Config) *HTTPSource {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}
	if cfg.RetryMaxWait <= 0 {
		cfg.RetryMaxWait = 10 * time.Second
	}

	client := resty.New().
		SetHeader("User-Agent", userAgent).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		// a registered condition replaces resty's default retry on errors
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return true
			}
			return r.StatusCode() == 429 || r.StatusCode() >= 500
		})

	return &HTTPSource{client: client, cfg: cfg}
}

// ResolveLatest loads the radar page and returns the frame its image points at.
func (s *HTTPSource) ResolveLatest(ctx context.Context) (frame.Identity, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.cfg.PageURL)
	if err != nil {
		return frame.Identity{}, err
	}
	if resp.IsError() {
		return frame.Identity{}, fmt.Errorf("failed to load radar page: %s", resp.Status())
	}

	srcset, err := findElementAttr(bytes.NewReader(resp.Body()), s.cfg.ElementID, "srcset", "src")
	if err != nil {
		return frame.Identity{}, err
	}
	t, err := timestampFromURL(firstCandidate(srcset), s.cfg.Location)
	if err != nil {
		return frame.Identity{}, err
	}
	return frame.At(t, s.cfg.Step), nil
}

// ImageURL returns the download url of the frame image.
func (s *HTTPSource) ImageURL(id frame.Identity) string {
	t := id.Time().In(s.cfg.Location)
	return fmt.Sprintf(s.cfg.ImageURLFormat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute())
}

// Fetch downloads the frame image and returns it as PNG.
func (s *HTTPSource) Fetch(ctx context.Context, id frame.Identity) ([]byte, error) {
	url := s.ImageURL(id)
	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch %s: %s", url, resp.Status())
	}
	return img.ToPNG(resp.Body())
}
