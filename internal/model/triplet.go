package model

import (
	"encoding/json"
	"fmt"
)

// Triplet is a (subject, predicate, object) relation.
// On the wire it is a JSON array of exactly three strings.
type Triplet [3]string

// NewTriplet builds a triplet
func NewTriplet(subject, predicate, object string) Triplet {
	return Triplet{subject, predicate, object}
}

func (t Triplet) Subject() string   { return t[0] }
func (t Triplet) Predicate() string { return t[1] }
func (t Triplet) Object() string    { return t[2] }

func (t Triplet) String() string {
	return fmt.Sprintf("(%s, %s, %s)", t[0], t[1], t[2])
}

// MarshalJSON encodes the triplet as a 3-element string array
func (t Triplet) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{t[0], t[1], t[2]})
}

// UnmarshalJSON rejects anything that is not an array of exactly three strings
func (t *Triplet) UnmarshalJSON(data []byte) error {
	var parts []any
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("triplet: %w", err)
	}
	if len(parts) != 3 {
		return fmt.Errorf("triplet: expected 3 elements, got %d", len(parts))
	}
	var out Triplet
	for i, part := range parts {
		s, ok := part.(string)
		if !ok {
			return fmt.Errorf("triplet: element %d is %T, not a string", i, part)
		}
		out[i] = s
	}
	*t = out
	return nil
}

// NonNil returns an empty slice in place of nil so lists encode as []
func NonNil(triplets []Triplet) []Triplet {
	if triplets == nil {
		return []Triplet{}
	}
	return triplets
}
