package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/podmerge/podmerge/pkg/feed"
	"github.com/podmerge/podmerge/pkg/fetch"
	"github.com/podmerge/podmerge/pkg/merge"
	"github.com/podmerge/podmerge/pkg/model"
	"github.com/podmerge/podmerge/pkg/parser"
	"github.com/podmerge/podmerge/pkg/stats"
)

type fetcher interface {
	Fetch(ctx context.Context, src fetch.Source, token string) ([]byte, error)
	// Evict forgets a cached copy of the source
	Evict(ctx context.Context, src fetch.Source) error
}

type Config struct {
	Public     fetch.Source
	Authorized fetch.Source
	// TokenParam is the query parameter callers pass their token in
	TokenParam string
	Policy     merge.Policy
	Feed       feed.Options
	// MaxAge is advertised to clients via Cache-Control
	MaxAge time.Duration
}

type state string

const (
	stateReceived        = state("received")
	stateAuthMissing     = state("auth_missing")
	stateFetching        = state("fetching")
	stateFetchFailed     = state("fetch_failed")
	stateParsing         = state("parsing")
	stateParseFailed     = state("parse_failed")
	stateMerging         = state("merging")
	stateSerializing     = state("serializing")
	stateSerializeFailed = state("serialize_failed")
	stateResponded       = state("responded")
	stateCanceled        = state("canceled")
)

type format struct {
	name        string
	contentType string
	render      func(*model.MergedFeed, feed.Options) ([]byte, error)
}

var (
	formatRSS  = format{name: "rss", contentType: "application/rss+xml; charset=utf-8", render: feed.RSS}
	formatAtom = format{name: "atom", contentType: "application/atom+xml; charset=utf-8", render: feed.Atom}
)

type handler struct {
	fetcher fetcher
	cfg     Config
}

func New(fetcher fetcher, cfg Config) http.Handler {
	if cfg.TokenParam == "" {
		cfg.TokenParam = model.DefaultTokenParam
	}

	h := handler{
		fetcher: fetcher,
		cfg:     cfg,
	}

	r := chi.NewRouter()
	r.Get("/rss", h.serve(formatRSS))
	r.Get("/atom", h.serve(formatAtom))
	r.Get("/ping", h.ping)

	return r
}

func (h handler) ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h handler) serve(f format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		logger := log.WithFields(log.Fields{
			"format":     f.name,
			"request_id": middleware.GetReqID(r.Context()),
		})

		token := r.URL.Query().Get(h.cfg.TokenParam)

		st := stateReceived
		body, err := h.build(r.Context(), token, f, &st)
		stats.Request(f.name, string(st))

		if err != nil {
			if st == stateCanceled {
				logger.WithField("state", st).Debug("request canceled by client")
				return
			}

			status, reason := classify(err)
			message := scrub(err.Error(), token)

			entry := logger.WithFields(log.Fields{
				"state":  st,
				"status": status,
			})
			if status >= http.StatusInternalServerError {
				entry.Error(message)
			} else {
				entry.Warn(message)
			}

			writeError(w, status, reason, message)
			return
		}

		w.Header().Set("Content-Type", f.contentType)
		w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", int(h.cfg.MaxAge.Seconds())))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			logger.WithError(err).Debug("failed to write response")
		}

		logger.WithFields(log.Fields{
			"state":    st,
			"size":     len(body),
			"duration": time.Since(started),
		}).Info("feed served")
	}
}

// build runs the pipeline, st tracks how far the request got.
func (h handler) build(ctx context.Context, token string, f format, st *state) ([]byte, error) {
	if token == "" {
		*st = stateAuthMissing
		return nil, errors.Wrapf(model.ErrAuthRequired, "query parameter %q is missing", h.cfg.TokenParam)
	}

	*st = stateFetching
	publicRaw, authorizedRaw, err := h.fetch(ctx, token)
	if err != nil {
		*st = stateFetchFailed
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			*st = stateCanceled
		}
		return nil, err
	}

	*st = stateParsing
	public, err := parser.Parse(publicRaw, model.SourcePublic)
	if err != nil {
		*st = stateParseFailed
		// Don't keep serving a broken public document until it expires
		if evictErr := h.fetcher.Evict(ctx, h.cfg.Public); evictErr != nil {
			log.WithError(evictErr).Warn("failed to evict public feed")
		}
		return nil, err
	}

	authorized, err := parser.Parse(authorizedRaw, model.SourceAuthorized)
	if err != nil {
		*st = stateParseFailed
		return nil, err
	}

	*st = stateMerging
	merged := merge.Merge(public, authorized, h.cfg.Policy)

	*st = stateSerializing
	body, err := f.render(merged, h.cfg.Feed)
	if err != nil {
		*st = stateSerializeFailed
		return nil, err
	}

	*st = stateResponded
	return body, nil
}

// fetch downloads both documents concurrently. The first failure cancels the other request.
func (h handler) fetch(ctx context.Context, token string) ([]byte, []byte, error) {
	var (
		publicRaw     []byte
		authorizedRaw []byte
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		publicRaw, err = h.fetcher.Fetch(ctx, h.cfg.Public, token)
		return err
	})

	g.Go(func() error {
		var err error
		authorizedRaw, err = h.fetcher.Fetch(ctx, h.cfg.Authorized, token)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return publicRaw, authorizedRaw, nil
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrAuthRequired):
		return http.StatusBadRequest, "auth_required"
	case errors.Is(err, model.ErrAuthRejected):
		var fetchErr *model.FetchError
		if errors.As(err, &fetchErr) && fetchErr.Status == http.StatusUnauthorized {
			return http.StatusUnauthorized, "auth_rejected"
		}
		return http.StatusForbidden, "auth_rejected"
	case errors.Is(err, model.ErrFetchTimeout):
		return http.StatusGatewayTimeout, "fetch_timeout"
	case errors.Is(err, model.ErrFetch):
		return http.StatusBadGateway, "fetch_failed"
	case errors.Is(err, model.ErrParse):
		return http.StatusBadGateway, "parse_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, reason, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(errorResponse{Error: reason, Message: message}); err != nil {
		log.WithError(err).Debug("failed to write error response")
	}
}

// Tokens shorter than this are left alone, masking them would mangle unrelated text.
const minScrubLength = 4

// scrub masks the caller's token in text that leaves the process.
// Upstream documents may echo it back (for instance in a self link),
// possibly percent-encoded.
func scrub(s, token string) string {
	if len(token) < minScrubLength {
		return s
	}
	for _, form := range []string{token, url.QueryEscape(token), url.PathEscape(token)} {
		s = strings.ReplaceAll(s, form, "***")
	}
	return s
}
