package scoring

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/target/jobmatch/internal/domain/model"
)

const matchSchemaJSON = `{
  "$defs": {
    "match": {
      "type": "object",
      "required": ["title", "score"],
      "properties": {
        "title": {"type": "string"},
        "score": {"type": "number", "minimum": 0, "maximum": 100},
        "matching_skills": {"type": "array", "items": {"type": "string"}},
        "skill_gaps": {"type": "array", "items": {"type": "string"}}
      }
    },
    "matches": {"type": "array", "items": {"$ref": "#/$defs/match"}}
  },
  "oneOf": [
    {"$ref": "#/$defs/matches"},
    {
      "type": "object",
      "required": ["matches"],
      "properties": {"matches": {"$ref": "#/$defs/matches"}}
    }
  ]
}`

var matchSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("match.json", strings.NewReader(matchSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("match.json")
})

// ParseOutcome classifies scoring output. Text that validates against the match schema
// (a list of {title, score, matching_skills, skill_gaps}, bare or under "matches") is
// Structured; anything else is kept verbatim as Raw.
func ParseOutcome(text string) model.MatchOutcome {
	body := stripCodeFence(text)

	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return model.RawOutcome(text)
	}
	schema, err := matchSchema()
	if err != nil || schema.Validate(v) != nil {
		return model.RawOutcome(text)
	}

	var scores []model.MatchScore
	if strings.HasPrefix(strings.TrimSpace(body), "[") {
		err = json.Unmarshal([]byte(body), &scores)
	} else {
		var wrapped struct {
			Matches []model.MatchScore `json:"matches"`
		}
		err = json.Unmarshal([]byte(body), &wrapped)
		scores = wrapped.Matches
	}
	if err != nil {
		return model.RawOutcome(text)
	}
	if scores == nil {
		scores = []model.MatchScore{}
	}
	return model.StructuredOutcome(scores)
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	} else {
		return s
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}
