package consensus

import (
	"errors"
	"fmt"

	"github.com/ppiankov/agritriples/internal/model"
)

var (
	// ErrNoBackends is returned when there is nothing to reconcile
	ErrNoBackends = errors.New("no backend outputs")

	// ErrDuplicateBackend is returned when two outputs share a name
	ErrDuplicateBackend = errors.New("duplicate backend name")

	// ErrMisaligned matches every *AlignmentError via errors.Is
	ErrMisaligned = errors.New("backend outputs are not aligned")
)

// MismatchKind says how backend outputs disagree
type MismatchKind int

const (
	CountMismatch MismatchKind = iota // Paragraph counts differ
	TextMismatch                      // Same index, different text
)

func (k MismatchKind) String() string {
	if k == TextMismatch {
		return "text_mismatch"
	}
	return "count_mismatch"
}

// AlignmentError reports backend outputs that do not describe the same paragraphs
type AlignmentError struct {
	Kind MismatchKind

	// Counts holds each backend's paragraph count (CountMismatch)
	Counts []int

	// Index and Backend locate the first differing text (TextMismatch)
	Index   int
	Backend string
}

func (e *AlignmentError) Error() string {
	if e.Kind == TextMismatch {
		return fmt.Sprintf("paragraph %d text of backend %s differs from the reference backend", e.Index, e.Backend)
	}
	return fmt.Sprintf("backends have different paragraph counts: %v", e.Counts)
}

// Is lets errors.Is(err, ErrMisaligned) match
func (e *AlignmentError) Is(target error) bool {
	return target == ErrMisaligned
}

// Validate checks that every backend covers the same paragraph texts in the
// same order and returns that shared sequence. The first backend is the
// reference.
func Validate(outputs []model.BackendOutput) ([]string, error) {
	if len(outputs) == 0 {
		return nil, ErrNoBackends
	}

	seen := make(map[string]bool, len(outputs))
	for _, out := range outputs {
		if seen[out.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateBackend, out.Name)
		}
		seen[out.Name] = true
	}

	counts := make([]int, len(outputs))
	mismatch := false
	for i, out := range outputs {
		counts[i] = len(out.Results)
		if counts[i] != counts[0] {
			mismatch = true
		}
	}
	if mismatch {
		return nil, &AlignmentError{Kind: CountMismatch, Counts: counts}
	}

	reference := outputs[0].Texts()
	for _, out := range outputs[1:] {
		for i, r := range out.Results {
			if r.Text != reference[i] {
				return nil, &AlignmentError{Kind: TextMismatch, Index: i, Backend: out.Name}
			}
		}
	}

	return reference, nil
}
