// Package icestats reads listener counts from an Icecast status-json.xsl
// endpoint.
package icestats

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
)

const maxStatusBytes = 1 << 20

// ErrNoStats is returned when the status document carries no listener counts.
var ErrNoStats = errors.New("couldn't parse stats from json")

// Stats holds the listener counts of one mount.
type Stats struct {
	Current uint64
	Peak    uint64
}

type status struct {
	Icestats *struct {
		// Icecast sends a single mount as an object and several as an array.
		Source json.RawMessage `json:"source"`
	} `json:"icestats"`
}

type source struct {
	Listeners    *uint64 `json:"listeners"`
	ListenerPeak *uint64 `json:"listener_peak"`
}

// Client fetches Stats from a status URL.
type Client struct {
	url    string
	client *http.Client
}

// New returns a Client for url. A zero timeout leaves requests bounded only by
// their context.
func New(url string, timeout time.Duration) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch returns the listener counts of the first mount in the status document.
func (c *Client) Fetch(ctx context.Context) (Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Stats{}, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Stats{}, errors.Wrap(err, "http request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Stats{}, errors.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBytes))
	if err != nil {
		return Stats{}, errors.Wrap(err, "read body")
	}

	return Parse(body)
}

// Parse extracts Stats from a status-json.xsl document.
func Parse(data []byte) (Stats, error) {
	var doc status
	if err := json.Unmarshal(data, &doc); err != nil {
		return Stats{}, errors.Wrap(err, "parse json")
	}
	if doc.Icestats == nil || len(doc.Icestats.Source) == 0 {
		return Stats{}, ErrNoStats
	}

	src, err := firstSource(doc.Icestats.Source)
	if err != nil {
		return Stats{}, err
	}
	if src.Listeners == nil || src.ListenerPeak == nil {
		return Stats{}, ErrNoStats
	}

	return Stats{Current: *src.Listeners, Peak: *src.ListenerPeak}, nil
}

func firstSource(raw json.RawMessage) (source, error) {
	var src source

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return src, ErrNoStats
	}

	switch raw[0] {
	case '[':
		var sources []source
		if err := json.Unmarshal(raw, &sources); err != nil {
			return src, errors.Wrap(err, "parse sources")
		}
		if len(sources) == 0 {
			return src, ErrNoStats
		}
		return sources[0], nil
	case '{':
		if err := json.Unmarshal(raw, &src); err != nil {
			return src, errors.Wrap(err, "parse source")
		}
		return src, nil
	}

	return src, ErrNoStats
}
