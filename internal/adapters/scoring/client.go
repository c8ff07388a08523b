// Package scoring calls the external chat-completions service that scores postings against a resume.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/jobmatch/internal/core"
	"github.com/target/jobmatch/internal/domain/model"
)

const (
	DefaultBaseURL     = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4-turbo-preview"
	DefaultTemperature = 0.3
	DefaultContentPath = "choices[0].message.content"

	maxScoringResponseBytes = 4 << 20
)

const systemPrompt = "You are a job matching assistant. Analyze the provided resume against job postings. " +
	"For each job, provide a match score (0-100), top 3 matching skills, and top 3 skill gaps. " +
	"Return the response as valid JSON with array of {title, score, matching_skills, skill_gaps}."

var (
	// ErrMissingCredential is returned when Score is called without a credential.
	ErrMissingCredential = errors.New("scoring credential is required")
	// ErrNoContent is returned when the content path does not select a string.
	ErrNoContent = errors.New("scoring response has no content")
)

// Options configures a Client.
type Options struct {
	BaseURL     string
	Model       string
	Temperature float64
	// ContentPath is a JMESPath expression selecting the reply text from the response body.
	ContentPath string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client implements core.Scorer against a chat-completions endpoint.
type Client struct {
	endpoint    string
	model       string
	temperature float64
	contentPath string
	http        *http.Client
	logger      *slog.Logger
}

// New validates opts and builds a Client.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	modelName := strings.TrimSpace(opts.Model)
	if modelName == "" {
		modelName = DefaultModel
	}
	path := strings.TrimSpace(opts.ContentPath)
	if path == "" {
		path = DefaultContentPath
	}
	if _, err := jmespath.Compile(path); err != nil {
		return nil, fmt.Errorf("invalid content path %q: %w", path, err)
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint:    base + "/chat/completions",
		model:       modelName,
		temperature: opts.Temperature,
		contentPath: path,
		http:        hc,
		logger:      logger.With("component", "scoring_client"),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// BuildUserPrompt renders the resume and postings for the scoring request.
func BuildUserPrompt(req core.ScoreRequest) (string, error) {
	postings, err := json.MarshalIndent(req.Postings, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode postings: %w", err)
	}
	var b strings.Builder
	b.WriteString("Resume:\n\n")
	b.WriteString(req.Resume)
	if y := req.Criteria.YearsOfExperience; y != nil {
		fmt.Fprintf(&b, "\n\nYears of experience: %d", *y)
	}
	if len(req.Criteria.Skills) > 0 {
		b.WriteString("\nSkills: ")
		b.WriteString(strings.Join(req.Criteria.Skills, ", "))
	}
	b.WriteString("\n\nPlease analyze these job postings:\n\n")
	b.Write(postings)
	return b.String(), nil
}

// Score makes exactly one request. Transport and HTTP errors are returned; a reply that
// does not parse as match data is a Raw outcome.
func (c *Client) Score(ctx context.Context, req core.ScoreRequest) (model.MatchOutcome, error) {
	if strings.TrimSpace(req.Credential) == "" {
		return model.MatchOutcome{}, ErrMissingCredential
	}
	userPrompt, err := BuildUserPrompt(req)
	if err != nil {
		return model.MatchOutcome{}, err
	}
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return model.MatchOutcome{}, fmt.Errorf("encode scoring request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.MatchOutcome{}, fmt.Errorf("build scoring request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return model.MatchOutcome{}, fmt.Errorf("send scoring request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxScoringResponseBytes))
	if err != nil {
		return model.MatchOutcome{}, fmt.Errorf("read scoring response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.MatchOutcome{}, fmt.Errorf("scoring service returned %d", resp.StatusCode)
	}

	content, err := c.extractContent(raw)
	if err != nil {
		return model.MatchOutcome{}, err
	}
	outcome := ParseOutcome(content)
	c.logger.DebugContext(ctx, "scoring response received",
		"kind", outcome.Kind, "scores", len(outcome.Scores), "duration", time.Since(start))
	return outcome, nil
}

func (c *Client) extractContent(raw []byte) (string, error) {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("decode scoring response: %w", err)
	}
	v, err := jmespath.Search(c.contentPath, data)
	if err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", ErrNoContent
	}
	return s, nil
}

var _ core.Scorer = (*Client)(nil)
