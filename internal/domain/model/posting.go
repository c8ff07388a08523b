package model

import "strings"

// Posting is one job advertisement returned by a posting source.
type Posting struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Salary      string `json:"salary"`
	JobType     string `json:"job_type"`
	URL         string `json:"url"`
	Posted      string `json:"posted"`
	Experience  string `json:"experience"`
}

// MatchScore is the scoring service's verdict for one posting.
type MatchScore struct {
	Title          string   `json:"title"`
	Score          float64  `json:"score"`
	MatchingSkills []string `json:"matching_skills"`
	SkillGaps      []string `json:"skill_gaps"`
}

// OutcomeKind tags a MatchOutcome.
type OutcomeKind string

const (
	OutcomeStructured OutcomeKind = "structured"
	OutcomeRaw        OutcomeKind = "raw"
)

// MatchOutcome is either Structured(scores) or Raw(text). Both are successful results.
type MatchOutcome struct {
	Kind   OutcomeKind
	Scores []MatchScore
	Raw    string
}

// StructuredOutcome wraps parsed scores.
func StructuredOutcome(scores []MatchScore) MatchOutcome {
	return MatchOutcome{Kind: OutcomeStructured, Scores: scores}
}

// RawOutcome wraps an unparseable scoring response.
func RawOutcome(text string) MatchOutcome {
	return MatchOutcome{Kind: OutcomeRaw, Raw: text}
}

// ScoredPosting is a posting with its match data, if any was obtained.
type ScoredPosting struct {
	Posting
	Match *MatchScore `json:"match,omitempty"`
}

// ResultsDocument is the durable JSON artifact served to clients.
type ResultsDocument struct {
	Jobs        []ScoredPosting `json:"jobs"`
	Query       string          `json:"query"`
	Location    string          `json:"location"`
	Matches     []MatchScore    `json:"matches,omitempty"`
	RawResponse *string         `json:"raw_response,omitempty"`
	MatchError  string          `json:"match_error,omitempty"`
}

// NewResultsDocument builds the postings-only document for the given criteria.
func NewResultsDocument(postings []Posting, c Criteria) *ResultsDocument {
	jobs := make([]ScoredPosting, len(postings))
	for i, p := range postings {
		jobs[i] = ScoredPosting{Posting: p}
	}
	return &ResultsDocument{Jobs: jobs, Query: c.JobTitles, Location: c.Location}
}

// Enrich merges a match outcome into the document. Scores attach to postings by
// case-insensitive title; the first unused posting with that title wins.
func (d *ResultsDocument) Enrich(outcome MatchOutcome) {
	switch outcome.Kind {
	case OutcomeRaw:
		raw := outcome.Raw
		d.RawResponse = &raw
	case OutcomeStructured:
		d.Matches = outcome.Scores
		used := make([]bool, len(d.Jobs))
		for i := range outcome.Scores {
			score := outcome.Scores[i]
			key := strings.ToLower(strings.TrimSpace(score.Title))
			for j := range d.Jobs {
				if used[j] || strings.ToLower(strings.TrimSpace(d.Jobs[j].Title)) != key {
					continue
				}
				used[j] = true
				d.Jobs[j].Match = &score
				break
			}
		}
	}
}
