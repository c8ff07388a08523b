package model

import "strings"

// Default search values used when a submission omits them.
const (
	DefaultJobTitles = "developer"
	DefaultLocation  = "india"
)

// Criteria is what the caller is searching for.
type Criteria struct {
	JobTitles         string   `json:"job_titles"`
	Location          string   `json:"location"`
	YearsOfExperience *int     `json:"years_of_experience,omitempty"`
	Skills            []string `json:"skills,omitempty"`
}

var canonicalEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`)

// Canonical returns the string folded into the dedup fingerprint: titles and location
// joined by ":", with ":" and "\" escaped inside each so the split is unambiguous.
func (c Criteria) Canonical() string {
	return canonicalEscaper.Replace(c.JobTitles) + ":" + canonicalEscaper.Replace(c.Location)
}

// WithDefaults fills blank titles and location.
func (c Criteria) WithDefaults() Criteria {
	if strings.TrimSpace(c.JobTitles) == "" {
		c.JobTitles = DefaultJobTitles
	}
	if strings.TrimSpace(c.Location) == "" {
		c.Location = DefaultLocation
	}
	return c
}

// ParseSkills splits a comma separated list, keeping order and dropping blanks.
func ParseSkills(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SkillsCSV joins skills back into the stored comma separated form.
func (c Criteria) SkillsCSV() string {
	return strings.Join(c.Skills, ",")
}
