package config

import (
	"strings"
	"time"
)

// UploadConfig controls resume intake.
type UploadConfig struct {
	// Dir receives uploaded resumes.
	Dir string `env:"UPLOAD_DIR" envDefault:"uploads"`

	// MaxBytes is the largest accepted resume (default 5 MiB).
	MaxBytes int64 `env:"UPLOAD_MAX_BYTES" envDefault:"5242880"`

	// AllowedExtensions is the case-insensitive extension allowlist, without dots.
	AllowedExtensions []string `env:"UPLOAD_ALLOWED_EXTENSIONS" envDefault:"pdf,doc,docx,txt" envSeparator:","`

	// RatePerMinute is the per-client request budget for POST /upload.
	RatePerMinute int `env:"UPLOAD_RATE_PER_MINUTE" envDefault:"60"`
}

// Sanitize normalises the extension list and clamps limits.
func (u *UploadConfig) Sanitize() {
	u.Dir = strings.TrimSpace(u.Dir)
	if u.Dir == "" {
		u.Dir = "uploads"
	}
	if u.MaxBytes <= 0 {
		u.MaxBytes = 5 << 20
	}
	if u.RatePerMinute < 1 {
		u.RatePerMinute = 1
	}
	exts := make([]string, 0, len(u.AllowedExtensions))
	for _, ext := range u.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			exts = append(exts, ext)
		}
	}
	u.AllowedExtensions = exts
}

// ResultsConfig controls where results documents are written.
type ResultsConfig struct {
	Dir string `env:"RESULTS_DIR" envDefault:"outputs"`
}

// PipelineConfig controls stage timing and the fetch retry budget.
type PipelineConfig struct {
	// MatchDelay is the earliest start of the match stage after fetch completes.
	MatchDelay time.Duration `env:"PIPELINE_MATCH_DELAY" envDefault:"1s"`

	// CleanupDelay is how long an uploaded resume is retained after matching.
	CleanupDelay time.Duration `env:"PIPELINE_CLEANUP_DELAY" envDefault:"168h"` // 7 days

	// FetchAttempts is the number of posting-source calls made per fetch delivery.
	FetchAttempts int `env:"PIPELINE_FETCH_ATTEMPTS" envDefault:"3"`

	FetchBackoffMin time.Duration `env:"PIPELINE_FETCH_BACKOFF_MIN" envDefault:"2s"`
	FetchBackoffMax time.Duration `env:"PIPELINE_FETCH_BACKOFF_MAX" envDefault:"10s"`

	// FetchTimeout bounds a single posting-source call.
	FetchTimeout time.Duration `env:"PIPELINE_FETCH_TIMEOUT" envDefault:"30s"`

	// MatchTimeout bounds a single scoring call.
	MatchTimeout time.Duration `env:"PIPELINE_MATCH_TIMEOUT" envDefault:"60s"`

	// MaxRetries is the delivery budget of each stage task.
	MaxRetries int `env:"PIPELINE_TASK_MAX_RETRIES" envDefault:"3"`
}

// Sanitize applies guardrails to pipeline configuration values.
func (p *PipelineConfig) Sanitize() {
	if p.MatchDelay < 0 {
		p.MatchDelay = 0
	}
	if p.CleanupDelay < 0 {
		p.CleanupDelay = 0
	}
	if p.FetchAttempts < 1 {
		p.FetchAttempts = 1
	}
	if p.FetchBackoffMin < 0 {
		p.FetchBackoffMin = 0
	}
	if p.FetchBackoffMax < p.FetchBackoffMin {
		p.FetchBackoffMax = p.FetchBackoffMin
	}
	if p.FetchTimeout <= 0 {
		p.FetchTimeout = 30 * time.Second
	}
	if p.MatchTimeout <= 0 {
		p.MatchTimeout = 60 * time.Second
	}
	if p.MaxRetries < 1 {
		p.MaxRetries = 1
	}
}

// PostingsMode selects the posting source connector.
type PostingsMode string

const (
	// PostingsModeStub returns a fixed list of postings.
	PostingsModeStub PostingsMode = "stub"
	// PostingsModeHTTP queries a remote search endpoint.
	PostingsModeHTTP PostingsMode = "http"
)

// PostingsConfig configures the posting source.
type PostingsConfig struct {
	Mode          PostingsMode `env:"POSTINGS_MODE"            envDefault:"stub"`
	BaseURL       string       `env:"POSTINGS_BASE_URL"`
	RatePerMinute int          `env:"POSTINGS_RATE_PER_MINUTE" envDefault:"30"`
	UserAgent     string       `env:"POSTINGS_USER_AGENT"`
}

// Sanitize falls back to the stub source when the HTTP source is not usable.
func (p *PostingsConfig) Sanitize() {
	p.Mode = PostingsMode(strings.ToLower(strings.TrimSpace(string(p.Mode))))
	p.BaseURL = strings.TrimSpace(p.BaseURL)
	if p.Mode != PostingsModeHTTP || p.BaseURL == "" {
		p.Mode = PostingsModeStub
	}
	if p.RatePerMinute < 1 {
		p.RatePerMinute = 1
	}
}

// ScoringConfig configures the scoring service client.
type ScoringConfig struct {
	// APIKey is the process-wide credential. When set it is used for every job.
	APIKey      string  `env:"SCORING_API_KEY"`
	BaseURL     string  `env:"SCORING_BASE_URL"     envDefault:"https://api.openai.com/v1"`
	Model       string  `env:"SCORING_MODEL"        envDefault:"gpt-4-turbo-preview"`
	Temperature float64 `env:"SCORING_TEMPERATURE"  envDefault:"0.3"`
	// ContentPath is a JMESPath expression selecting the reply text.
	ContentPath string `env:"SCORING_CONTENT_PATH" envDefault:"choices[0].message.content"`
}

// Sanitize trims values and clamps the temperature to [0, 2].
func (s *ScoringConfig) Sanitize() {
	s.APIKey = strings.TrimSpace(s.APIKey)
	s.BaseURL = strings.TrimSpace(s.BaseURL)
	if s.Temperature < 0 {
		s.Temperature = 0
	}
	if s.Temperature > 2 {
		s.Temperature = 2
	}
}
