package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/podmerge/podmerge/pkg/model"
	"github.com/podmerge/podmerge/pkg/stats"
)

// Source describes an upstream feed.
type Source struct {
	Name model.Source
	// URL of the feed, may already carry query parameters
	URL string `toml:"url" env:"URL, overwrite"`
	// TokenParam is the query parameter that receives the caller's token.
	// Empty for public feeds.
	TokenParam string `toml:"token_param" env:"TOKEN_PARAM, overwrite"`
}

// Gated reports whether the source requires a caller supplied token.
func (s Source) Gated() bool {
	return s.TokenParam != ""
}

type Config struct {
	// Timeout bounds a single upstream request, including reading the body
	Timeout time.Duration `toml:"timeout" env:"PODMERGE_FETCH_TIMEOUT, overwrite"`
	// MaxBodySize is the largest feed document accepted, in bytes
	MaxBodySize int64 `toml:"max_body_size" env:"PODMERGE_FETCH_MAX_BODY_SIZE, overwrite"`
	// UserAgent sent upstream
	UserAgent string `toml:"user_agent" env:"PODMERGE_FETCH_USER_AGENT, overwrite"`
}

// Fetcher downloads raw feed documents.
type Fetcher struct {
	client *http.Client
	cfg    Config
}

func New(cfg Config, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = model.DefaultFetchTimeout
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = model.DefaultMaxBodySize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = model.DefaultUserAgent
	}
	return &Fetcher{client: client, cfg: cfg}
}

// Fetch performs a GET request against the source and returns the body.
// For gated sources token is added to the query string; an empty token
// fails with model.ErrAuthRequired before any request is made.
func (f *Fetcher) Fetch(ctx context.Context, src Source, token string) ([]byte, error) {
	if src.Gated() && token == "" {
		return nil, model.ErrAuthRequired
	}

	reqURL, err := url.Parse(src.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s feed url", src.Name)
	}
	if src.Gated() {
		query := reqURL.Query()
		query.Set(src.TokenParam, token)
		reqURL.RawQuery = query.Encode()
	}

	logger := log.WithFields(log.Fields{
		"source": src.Name,
		"url":    Redact(reqURL, src.TokenParam),
	})

	started := time.Now()
	body, err := f.get(ctx, src, reqURL)
	stats.Fetch(string(src.Name), started, err)
	if err != nil {
		logger.WithError(err).Warn("upstream request failed")
		return nil, err
	}

	logger.WithFields(log.Fields{
		"size":     len(body),
		"duration": time.Since(started),
	}).Debug("fetched feed")
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, src Source, reqURL *url.URL) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, f.transportError(ctx, src, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.transportError(ctx, src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)

		kind := model.ErrFetch
		if src.Gated() && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			kind = model.ErrAuthRejected
		}
		return nil, &model.FetchError{Source: src.Name, Status: resp.StatusCode, Kind: kind}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodySize+1))
	if err != nil {
		return nil, f.transportError(ctx, src, err)
	}
	if int64(len(body)) > f.cfg.MaxBodySize {
		return nil, &model.FetchError{
			Source: src.Name,
			Status: resp.StatusCode,
			Kind:   model.ErrFetch,
			Err:    errors.Errorf("document exceeds %d bytes", f.cfg.MaxBodySize),
		}
	}

	return body, nil
}

// transportError classifies a failed round trip and strips the request URL,
// which may carry the caller's token, from the cause.
func (f *Fetcher) transportError(ctx context.Context, src Source, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	// The caller went away, nothing to report upstream
	if parent := context.Cause(ctx); errors.Is(parent, context.Canceled) {
		return errors.Wrapf(context.Canceled, "%s feed request abandoned", src.Name)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &model.FetchError{
			Source: src.Name,
			Kind:   model.ErrFetchTimeout,
			Err:    fmt.Errorf("no response within %s", f.cfg.Timeout),
		}
	}

	return &model.FetchError{Source: src.Name, Kind: model.ErrFetch, Err: err}
}
