package postings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/domain/model"
	apperrors "github.com/target/jobmatch/internal/errors"
)

const (
	defaultUserAgent      = "jobmatch/1.0 (+https://github.com/target/jobmatch)"
	defaultRatePerMinute  = 30
	maxSearchResponseBody = 2 << 20
)

// HTTPSourceOptions configures an HTTPSource.
type HTTPSourceOptions struct {
	BaseURL       string
	UserAgent     string
	RatePerMinute int
	Timeout       time.Duration
	Client        *http.Client
	Logger        *slog.Logger
}

// HTTPSource queries a posting search endpoint: GET <base>/search?q=<titles>&location=<loc>.
// The response body is either a JSON array of postings or {"jobs": [...]}.
type HTTPSource struct {
	base      *url.URL
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewHTTPSource builds an HTTPSource with a cookie jar scoped by the public suffix list.
func NewHTTPSource(opts HTTPSourceOptions) (*HTTPSource, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid postings base url %q", opts.BaseURL)
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		c := *client
		c.Jar = jar
		client = &c
	}

	perMinute := opts.RatePerMinute
	if perMinute <= 0 {
		perMinute = defaultRatePerMinute
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPSource{
		base:      base,
		userAgent: ua,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
		logger:    logger.With("component", "postings_http"),
	}, nil
}

// Search performs one request. Network failures, throttling, server errors and
// undecodable bodies are transient; other client errors are not.
func (s *HTTPSource) Search(ctx context.Context, criteria model.Criteria) ([]model.Posting, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := s.base.JoinPath("search")
	q := u.Query()
	q.Set("q", criteria.JobTitles)
	q.Set("location", criteria.Location)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.Transient(fmt.Errorf("search request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxSearchResponseBody))
		return nil, apperrors.Transient(fmt.Errorf("posting source returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("posting source returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchResponseBody))
	if err != nil {
		return nil, apperrors.Transient(fmt.Errorf("read search response: %w", err))
	}
	postings, err := decodePostings(body)
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	s.logger.DebugContext(ctx, "fetched postings",
		"query", criteria.JobTitles, "location", criteria.Location, "count", len(postings))
	return postings, nil
}

func decodePostings(body []byte) ([]model.Posting, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var list []model.Posting
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode postings: %w", err)
		}
		return list, nil
	}
	var wrapped struct {
		Jobs *[]model.Posting `json:"jobs"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode postings: %w", err)
	}
	if wrapped.Jobs == nil {
		return nil, errors.New("decode postings: response has no jobs field")
	}
	return *wrapped.Jobs, nil
}

var _ core.PostingSource = (*HTTPSource)(nil)
