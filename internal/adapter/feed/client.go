// Package feed fetches batches of raw records from the GitHub public
// events feed, following pagination under rate-limit and volume safety
// stops.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/user/eventwatch/internal/adapter/metrics"
	"github.com/user/eventwatch/internal/domain"
)

const perPage = 100

// Options configures a feed Client.
type Options struct {
	// Token authenticates against the feed; empty means unauthenticated
	// (with much lower quota).
	Token string
	// BaseURL overrides the API root, for tests and the feed simulator.
	BaseURL string
	// MaxPages is the pagination safety stop per cycle.
	MaxPages int
	// MaxRecords is the accumulated volume ceiling per cycle.
	MaxRecords int
	// QuotaFloor stops the cycle when the upstream-reported remaining
	// quota drops below it.
	QuotaFloor int
	// PageTimeout bounds each page request.
	PageTimeout time.Duration
	// RequestsPerSecond paces page requests across cycles.
	RequestsPerSecond float64
}

// Client implements domain.BatchFetcher over the GitHub events API.
type Client struct {
	gh      *gh.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	m       *metrics.PipelineMetrics
	opts    Options
}

// NewClient creates a feed client. m may be nil.
func NewClient(opts Options, logger *slog.Logger, m *metrics.PipelineMetrics) (*Client, error) {
	httpClient := oauth2.NewClient(context.Background(), nil)
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	client := gh.NewClient(httpClient)
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse feed base url: %w", err)
		}
		client.BaseURL = u
	}

	if opts.MaxPages <= 0 {
		opts.MaxPages = 5
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = 1000
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 10 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}

	return &Client{
		gh:      client,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:  logger.With("component", "feed"),
		m:       m,
		opts:    opts,
	}, nil
}

// FetchBatch walks the feed's pages from the root endpoint until no next
// page is given, the page or volume ceiling is reached, or the remaining
// quota drops below the safety floor. Ceiling and quota stops are normal
// termination, not errors. A failing page aborts the cycle but the records
// fetched so far are still returned alongside the error.
func (c *Client) FetchBatch(ctx context.Context) (domain.FetchResult, error) {
	var res domain.FetchResult
	opts := &gh.ListOptions{PerPage: perPage, Page: 1}

	for pages := 0; ; {
		if err := c.limiter.Wait(ctx); err != nil {
			return res, err
		}

		pageCtx, cancel := context.WithTimeout(ctx, c.opts.PageTimeout)
		events, resp, err := c.gh.Activity.ListEvents(pageCtx, opts)
		cancel()
		if err != nil {
			return res, fmt.Errorf("fetch events page %d: %w", opts.Page, err)
		}
		pages++
		if c.m != nil {
			c.m.PagesFetched.Inc()
		}

		records := convertEvents(events)
		if pages == 1 {
			res.FirstPage = len(records)
		}
		res.Records = append(res.Records, records...)
		res.QuotaRemaining = resp.Rate.Remaining

		if resp.Rate.Limit > 0 && resp.Rate.Remaining < c.opts.QuotaFloor {
			// Warning only: operators throttle externally, the cycle just
			// stops paginating.
			c.logger.Warn("remaining quota below safety floor, stopping pagination",
				"remaining", resp.Rate.Remaining,
				"floor", c.opts.QuotaFloor,
			)
			res.Truncated = true
			break
		}
		if len(res.Records) >= c.opts.MaxRecords {
			res.Truncated = true
			break
		}
		if resp.NextPage == 0 {
			break
		}
		if pages >= c.opts.MaxPages {
			res.Truncated = true
			break
		}
		opts.Page = resp.NextPage
	}

	return res, nil
}

// convertEvents maps feed records into domain records, dropping entries
// without an identifier or timestamp.
func convertEvents(events []*gh.Event) []domain.RawRecord {
	records := make([]domain.RawRecord, 0, len(events))
	for _, ev := range events {
		if ev.GetID() == "" || ev.GetCreatedAt().IsZero() {
			continue
		}
		records = append(records, domain.RawRecord{
			ID:        ev.GetID(),
			Type:      ev.GetType(),
			Repo:      ev.GetRepo().GetName(),
			CreatedAt: ev.GetCreatedAt().Time,
			Payload:   ev.GetRawPayload(),
		})
	}
	return records
}
