package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/agritriples/internal/model"
)

// OriginConsensus marks reconciled triplets; candidate rows carry the backend name
const OriginConsensus = model.ConsensusOrigin

// ErrReservedBackend is returned when a backend name would collide with an origin label
var ErrReservedBackend = errors.New("reserved backend name")

// nowFunc is the clock used for run timestamps (injectable for tests)
var nowFunc = func() time.Time { return time.Now().UTC() }

// KnowledgeBase accumulates consensus runs in SQLite
type KnowledgeBase struct {
	db *sql.DB
}

// OpenKnowledgeBase opens or creates the database at path
func OpenKnowledgeBase(path string) (*KnowledgeBase, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	kb := &KnowledgeBase{db: db}
	if err := kb.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return kb, nil
}

// Close releases the database connection
func (kb *KnowledgeBase) Close() error {
	return kb.db.Close()
}

func (kb *KnowledgeBase) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			created_at TEXT NOT NULL,
			backends TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS paragraphs (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			text TEXT NOT NULL,
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS triplets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			paragraph_idx INTEGER NOT NULL,
			origin TEXT NOT NULL,
			subject TEXT NOT NULL,
			predicate TEXT NOT NULL,
			object TEXT NOT NULL,
			FOREIGN KEY (run_id, paragraph_idx) REFERENCES paragraphs(run_id, idx) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_triplets_subject ON triplets(subject)`,
		`CREATE INDEX IF NOT EXISTS idx_triplets_object ON triplets(object)`,
		`CREATE INDEX IF NOT EXISTS idx_triplets_origin ON triplets(origin)`,
	}

	for _, stmt := range statements {
		if _, err := kb.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveRun stores one consensus run, candidates included, and returns its id
func (kb *KnowledgeBase) SaveRun(ctx context.Context, source string, records []model.ConsensusRecord) (string, error) {
	runID := uuid.NewString()

	var backends []string
	if len(records) > 0 {
		backends = records[0].SourceModels.Names()
	}
	for _, rec := range records {
		for _, name := range rec.SourceModels.Names() {
			if model.IsReservedBackendName(name) {
				return "", fmt.Errorf("%w: %q", ErrReservedBackend, name)
			}
		}
	}
	backendsJSON, err := json.Marshal(backends)
	if err != nil {
		return "", fmt.Errorf("encoding backends: %w", err)
	}

	tx, err := kb.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, created_at, backends) VALUES (?, ?, ?, ?)`,
		runID, source, nowFunc().Format(time.RFC3339Nano), string(backendsJSON),
	); err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	paraStmt, err := tx.PrepareContext(ctx, `INSERT INTO paragraphs (run_id, idx, text) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing paragraph insert: %w", err)
	}
	defer func() { _ = paraStmt.Close() }()

	tripStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO triplets (run_id, paragraph_idx, origin, subject, predicate, object) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing triplet insert: %w", err)
	}
	defer func() { _ = tripStmt.Close() }()

	insert := func(idx int, origin string, triplets []model.Triplet) error {
		for _, t := range triplets {
			if _, err := tripStmt.ExecContext(ctx, runID, idx, origin, t.Subject(), t.Predicate(), t.Object()); err != nil {
				return fmt.Errorf("inserting triplet %s: %w", t, err)
			}
		}
		return nil
	}

	for i, rec := range records {
		if _, err := paraStmt.ExecContext(ctx, runID, i, rec.Text); err != nil {
			return "", fmt.Errorf("inserting paragraph %d: %w", i, err)
		}
		if err := insert(i, OriginConsensus, rec.ConsensusTriplets); err != nil {
			return "", err
		}
		for _, src := range rec.SourceModels {
			if err := insert(i, src.Name, src.Triplets); err != nil {
				return "", err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// ImportFile loads a consensus artifact and saves it as a run
func (kb *KnowledgeBase) ImportFile(ctx context.Context, path string) (string, int, error) {
	records, err := ReadConsensus(path)
	if err != nil {
		return "", 0, err
	}
	runID, err := kb.SaveRun(ctx, path, records)
	if err != nil {
		return "", 0, err
	}
	return runID, len(records), nil
}

// QueryOptions filters knowledge base triplets. Empty fields match anything.
type QueryOptions struct {
	// Term matches subject or object as a substring
	Term string

	Subject   string
	Predicate string
	Object    string

	// Origin is "consensus" (the default), a backend name, or "*" for all rows
	Origin string

	// RunID restricts results to one run
	RunID string

	// Limit caps the result count; zero means 50
	Limit int
}

// TripletRow is a stored triplet with its provenance
type TripletRow struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	Source    string        `json:"source" yaml:"source"`
	Paragraph int           `json:"paragraph" yaml:"paragraph"`
	Text      string        `json:"text" yaml:"text"`
	Origin    string        `json:"origin" yaml:"origin"`
	Triplet   model.Triplet `json:"triplet" yaml:"triplet,flow"`
}

// Query returns matching triplets, newest run first, then paragraph order
func (kb *KnowledgeBase) Query(ctx context.Context, opts QueryOptions) ([]TripletRow, error) {
	var (
		qb   strings.Builder
		args []any
	)

	qb.WriteString(
		`SELECT t.run_id, r.source, t.paragraph_idx, p.text, t.origin, t.subject, t.predicate, t.object
		FROM triplets t
		JOIN runs r ON r.id = t.run_id
		JOIN paragraphs p ON p.run_id = t.run_id AND p.idx = t.paragraph_idx
		WHERE 1=1`)

	origin := opts.Origin
	if origin == "" {
		origin = OriginConsensus
	}
	if origin != "*" {
		qb.WriteString(` AND t.origin = ?`)
		args = append(args, origin)
	}
	if opts.Term != "" {
		qb.WriteString(` AND (t.subject LIKE ? OR t.object LIKE ?)`)
		like := "%" + opts.Term + "%"
		args = append(args, like, like)
	}
	for _, f := range []struct{ column, value string }{
		{"t.subject", opts.Subject},
		{"t.predicate", opts.Predicate},
		{"t.object", opts.Object},
		{"t.run_id", opts.RunID},
	} {
		if f.value != "" {
			qb.WriteString(` AND ` + f.column + ` = ?`)
			args = append(args, f.value)
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	qb.WriteString(` ORDER BY r.created_at DESC, t.run_id, t.paragraph_idx, t.id LIMIT ?`)
	args = append(args, limit)

	rows, err := kb.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying triplets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TripletRow, 0)
	for rows.Next() {
		var r TripletRow
		if err := rows.Scan(&r.RunID, &r.Source, &r.Paragraph, &r.Text, &r.Origin,
			&r.Triplet[0], &r.Triplet[1], &r.Triplet[2]); err != nil {
			return nil, fmt.Errorf("scanning triplet: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// PredicateCount is one entry of the predicate histogram
type PredicateCount struct {
	Predicate string `json:"predicate" yaml:"predicate"`
	Count     int    `json:"count" yaml:"count"`
}

// Stats summarises the knowledge base
type Stats struct {
	Runs              int              `json:"runs" yaml:"runs"`
	Paragraphs        int              `json:"paragraphs" yaml:"paragraphs"`
	ConsensusTriplets int              `json:"consensus_triplets" yaml:"consensus_triplets"`
	CandidateTriplets int              `json:"candidate_triplets" yaml:"candidate_triplets"`
	TopPredicates     []PredicateCount `json:"top_predicates" yaml:"top_predicates"`
}

// Stats counts runs, paragraphs and triplets, and ranks consensus predicates
func (kb *KnowledgeBase) Stats(ctx context.Context) (Stats, error) {
	var s Stats

	counts := []struct {
		query string
		dest  *int
		args  []any
	}{
		{`SELECT count(*) FROM runs`, &s.Runs, nil},
		{`SELECT count(*) FROM paragraphs`, &s.Paragraphs, nil},
		{`SELECT count(*) FROM triplets WHERE origin = ?`, &s.ConsensusTriplets, []any{OriginConsensus}},
		{`SELECT count(*) FROM triplets WHERE origin != ?`, &s.CandidateTriplets, []any{OriginConsensus}},
	}
	for _, c := range counts {
		if err := kb.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return Stats{}, fmt.Errorf("counting: %w", err)
		}
	}

	rows, err := kb.db.QueryContext(ctx,
		`SELECT predicate, count(*) AS n FROM triplets WHERE origin = ?
		GROUP BY predicate ORDER BY n DESC, predicate LIMIT 10`, OriginConsensus)
	if err != nil {
		return Stats{}, fmt.Errorf("ranking predicates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	s.TopPredicates = make([]PredicateCount, 0)
	for rows.Next() {
		var pc PredicateCount
		if err := rows.Scan(&pc.Predicate, &pc.Count); err != nil {
			return Stats{}, fmt.Errorf("scanning predicate: %w", err)
		}
		s.TopPredicates = append(s.TopPredicates, pc)
	}
	return s, rows.Err()
}

// ExportYAML writes the rows matching opts as a YAML document
func (kb *KnowledgeBase) ExportYAML(ctx context.Context, w io.Writer, opts QueryOptions) error {
	rows, err := kb.Query(ctx, opts)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}
