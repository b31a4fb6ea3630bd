// Package store writes pipeline artifacts to disk and keeps a SQLite
// knowledge base of consensus runs.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/ppiankov/agritriples/internal/model"
)

// WriteJSON writes v as 2-space indented JSON with non-ASCII text kept
// verbatim. The file is written to a temp name and renamed into place, so
// readers never see a partial artifact.
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ReadJSON decodes the file at path into v
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// BackendFileName is the artifact name for one backend's paragraph results
func BackendFileName(backend string) string {
	name := unsafeFileChars.ReplaceAllString(backend, "_")
	if name == "" || name == "_" {
		name = "backend"
	}
	return "triplets_" + name + ".json"
}

// WriteBackendOutput writes one backend's results as a JSON list of
// {text, triplets} records and returns the file path
func WriteBackendOutput(dir string, out model.BackendOutput) (string, error) {
	path := filepath.Join(dir, BackendFileName(out.Name))
	results := out.Results
	if results == nil {
		results = []model.BackendResult{}
	}
	return path, WriteJSON(path, results)
}

// ReadBackendOutput loads a backend artifact and labels it with name
func ReadBackendOutput(name, path string) (model.BackendOutput, error) {
	var results []model.BackendResult
	if err := ReadJSON(path, &results); err != nil {
		return model.BackendOutput{}, err
	}
	for i := range results {
		results[i].Triplets = model.NonNil(results[i].Triplets)
	}
	return model.BackendOutput{Name: name, Results: results}, nil
}

// WriteConsensus writes the consensus records
func WriteConsensus(path string, records []model.ConsensusRecord) error {
	if records == nil {
		records = []model.ConsensusRecord{}
	}
	return WriteJSON(path, records)
}

// ReadConsensus loads consensus records
func ReadConsensus(path string) ([]model.ConsensusRecord, error) {
	var records []model.ConsensusRecord
	if err := ReadJSON(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// WriteParagraphs writes segmented paragraphs as a JSON list of strings
func WriteParagraphs(path string, paragraphs []model.Paragraph) error {
	return WriteJSON(path, model.ParagraphTexts(paragraphs))
}

// ReadParagraphs loads a JSON list of paragraph strings
func ReadParagraphs(path string) ([]string, error) {
	var texts []string
	if err := ReadJSON(path, &texts); err != nil {
		return nil, err
	}
	if texts == nil {
		texts = []string{}
	}
	return texts, nil
}
