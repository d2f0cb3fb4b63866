package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformedDecision is returned when the model output is not a valid
// routing decision.
var ErrMalformedDecision = errors.New("router: malformed routing decision")

// RouteDecision is the router's choice of dataset for a query.
type RouteDecision struct {
	// Dataset is the exact name of the chosen dataset.
	Dataset string `json:"dataset_name"`
	// Locale is the chosen dataset's locale.
	Locale string `json:"locale"`
	// Query is the user query, translated to Locale when needed.
	Query string `json:"query"`
}

// maxLoggedRunes bounds the model output quoted in parse failure logs.
const maxLoggedRunes = 200

// clip returns the first n runes of s.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// stripFences removes a surrounding markdown code fence (```json or ```)
// that models add despite being told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decisionSchema builds a JSON schema restricting dataset_name and locale to
// the catalog's values.
func decisionSchema(datasets []Dataset) map[string]any {
	names := make([]any, 0, len(datasets))
	locales := make([]any, 0, len(datasets))
	seenLocale := map[string]bool{}
	for _, d := range datasets {
		names = append(names, d.Name)
		if !seenLocale[d.Locale] {
			seenLocale[d.Locale] = true
			locales = append(locales, d.Locale)
		}
	}
	return map[string]any{
		"type":     "object",
		"required": []any{"dataset_name", "locale", "query"},
		"properties": map[string]any{
			"dataset_name": map[string]any{"type": "string", "enum": names},
			"locale":       map[string]any{"type": "string", "enum": locales},
			"query":        map[string]any{"type": "string", "minLength": 1},
		},
	}
}

// parseDecision decodes raw model output into a RouteDecision, validating it
// against the catalog. Every failure wraps ErrMalformedDecision.
func parseDecision(raw string, datasets []Dataset) (*RouteDecision, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty output", ErrMalformedDecision)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(decisionSchema(datasets)),
		gojsonschema.NewStringLoader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedDecision, strings.Join(details, "; "))
	}

	var d RouteDecision
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}
	return &d, nil
}
