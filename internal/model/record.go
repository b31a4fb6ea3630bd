package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// BackendResult is one paragraph's extraction output from a single backend
type BackendResult struct {
	Text     string    `json:"text"`
	Triplets []Triplet `json:"triplets"`
}

// MarshalJSON keeps empty triplet lists as [] on the wire
func (r BackendResult) MarshalJSON() ([]byte, error) {
	type alias BackendResult
	a := alias(r)
	a.Triplets = NonNil(a.Triplets)
	return json.Marshal(a)
}

// BackendOutput is the paragraph-indexed output of one named backend
type BackendOutput struct {
	Name    string          `json:"name"`
	Results []BackendResult `json:"results"`
}

// Texts returns the paragraph texts in order
func (o BackendOutput) Texts() []string {
	texts := make([]string, len(o.Results))
	for i, r := range o.Results {
		texts[i] = r.Text
	}
	return texts
}

// SourceModel pairs a backend name with its candidate triplets for one paragraph
type SourceModel struct {
	Name     string
	Triplets []Triplet
}

// SourceModels is an ordered backend-name → triplets mapping.
// It encodes as a JSON object whose keys keep backend order.
type SourceModels []SourceModel

// Get returns the triplets recorded for a backend
func (s SourceModels) Get(name string) ([]Triplet, bool) {
	for _, m := range s {
		if m.Name == name {
			return m.Triplets, true
		}
	}
	return nil, false
}

// Names returns backend names in order
func (s SourceModels) Names() []string {
	names := make([]string, len(s))
	for i, m := range s {
		names[i] = m.Name
	}
	return names
}

// MarshalJSON writes an object with keys in backend order
func (s SourceModels) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(NonNil(m.Triplets))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object preserving key order
func (s *SourceModels) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("source_models: %w", err)
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("source_models: expected object, got %v", tok)
	}

	var out SourceModels
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("source_models: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("source_models: unexpected key %v", keyTok)
		}
		var triplets []Triplet
		if err := dec.Decode(&triplets); err != nil {
			return fmt.Errorf("source_models[%s]: %w", name, err)
		}
		out = append(out, SourceModel{Name: name, Triplets: NonNil(triplets)})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("source_models: %w", err)
	}

	*s = out
	return nil
}

// ConsensusOrigin labels reconciled triplets wherever they sit beside
// per-backend candidates
const ConsensusOrigin = "consensus"

// IsReservedBackendName reports names a backend cannot take: the consensus
// label and the "*" all-origins wildcard
func IsReservedBackendName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), ConsensusOrigin) || strings.TrimSpace(name) == "*"
}

// ConsensusRecord is the terminal per-paragraph artifact
type ConsensusRecord struct {
	Text              string       `json:"text"`
	ConsensusTriplets []Triplet    `json:"consensus_triplets"`
	SourceModels      SourceModels `json:"source_models"`
}

// MarshalJSON keeps empty lists and mappings as [] and {}
func (r ConsensusRecord) MarshalJSON() ([]byte, error) {
	type alias ConsensusRecord
	a := alias(r)
	a.ConsensusTriplets = NonNil(a.ConsensusTriplets)
	if a.SourceModels == nil {
		a.SourceModels = SourceModels{}
	}
	return json.Marshal(a)
}

// CountTriplets sums the consensus triplets across records
func CountTriplets(records []ConsensusRecord) int {
	total := 0
	for _, r := range records {
		total += len(r.ConsensusTriplets)
	}
	return total
}
