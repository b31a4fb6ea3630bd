package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/agritriples/internal/model"
)

// ParseError reports a completion whose content is not a triplet list
type ParseError struct {
	Content string
	Reason  string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse triplets: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse triplets: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseTriplets pulls a triplet list out of raw completion content. The span
// from the first '[' to the last ']' must decode as a JSON array whose
// elements are all arrays of exactly three strings. Anything else is a
// *ParseError; an empty array is a valid empty result.
func ParseTriplets(content string) ([]model.Triplet, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return nil, &ParseError{Content: content, Reason: "no JSON array found"}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, &ParseError{Content: content, Reason: "invalid JSON array", Err: err}
	}

	triplets := make([]model.Triplet, 0, len(raw))
	for i, item := range raw {
		var t model.Triplet
		if err := json.Unmarshal(item, &t); err != nil {
			return nil, &ParseError{Content: content, Reason: fmt.Sprintf("element %d", i), Err: err}
		}
		triplets = append(triplets, t)
	}

	return triplets, nil
}
