package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bassista/go_datastore/internal/logger"
	"github.com/bassista/go_datastore/internal/record"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPLoader fetches JSON wire records over HTTP: GET <base> returns a list,
// GET <base>/<id> returns one record, which must carry the requested id.
type HTTPLoader[ID comparable, W record.Identifiable[ID]] struct {
	base   string
	client *http.Client
}

// NewHTTPLoader creates a loader for baseURL. A nil client gets a default
// one with a 30s timeout.
func NewHTTPLoader[ID comparable, W record.Identifiable[ID]](baseURL string, client *http.Client) (*HTTPLoader[ID, W], error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid loader url %q: %w", baseURL, err)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPLoader[ID, W]{base: strings.TrimRight(baseURL, "/"), client: client}, nil
}

func (l *HTTPLoader[ID, W]) LoadAll(ctx context.Context) ([]W, error) {
	var out []W
	if err := l.get(ctx, l.base, &out); err != nil {
		return nil, err
	}
	logger.WithComponent("loader").Debugf("fetched %d records from %s", len(out), l.base)
	return out, nil
}

func (l *HTTPLoader[ID, W]) LoadOne(ctx context.Context, id ID) (W, error) {
	var out W
	if err := l.get(ctx, l.base+"/"+url.PathEscape(record.Key(id)), &out); err != nil {
		return out, err
	}
	if got := out.RecordID(); got != id {
		var zero W
		return zero, fmt.Errorf("%w: requested %v, got %v", ErrIDMismatch, id, got)
	}
	return out, nil
}

func (l *HTTPLoader[ID, W]) get(ctx context.Context, target string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("get %s: unexpected status %d: %s", target, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}
