package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/agritriples/internal/store"
)

var (
	queryOpts   store.QueryOptions
	queryFormat string
	exportPath  string
)

// kbCmd represents the kb command
var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Work with the SQLite triplet knowledge base",
	Long: `The knowledge base collects consensus runs: the paragraphs, the consensus
triplets and every backend's candidates, tagged with a run id and source.

The database path comes from store.path (or --kb).`,
}

var kbImportCmd = &cobra.Command{
	Use:   "import <consensus.json>...",
	Short: "Import consensus files as runs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kb, err := openKnowledgeBase()
		if err != nil {
			return err
		}
		defer func() { _ = kb.Close() }()

		for _, path := range args {
			runID, n, err := kb.ImportFile(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
			fmt.Fprintf(os.Stderr, "✓ %s: %d paragraphs as run %s\n", path, n, runID)
		}
		return nil
	},
}

var kbQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search stored triplets",
	Long: `Query lists stored triplets, newest run first.

Example:
  agritriples kb query --term 稻瘟病
  agritriples kb query --predicate 防治药剂 --format json
  agritriples kb query --origin Qwen --run <run-id>`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kb, err := openKnowledgeBase()
		if err != nil {
			return err
		}
		defer func() { _ = kb.Close() }()

		switch queryFormat {
		case "yaml":
			return kb.ExportYAML(cmd.Context(), os.Stdout, queryOpts)
		case "json":
			rows, err := kb.Query(cmd.Context(), queryOpts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		case "table":
			rows, err := kb.Query(cmd.Context(), queryOpts)
			if err != nil {
				return err
			}
			return writeRowsTable(os.Stdout, rows)
		default:
			return fmt.Errorf("unknown format %q (supported: table, json, yaml)", queryFormat)
		}
	},
}

var kbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the knowledge base",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kb, err := openKnowledgeBase()
		if err != nil {
			return err
		}
		defer func() { _ = kb.Close() }()

		stats, err := kb.Stats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Runs:                %d\n", stats.Runs)
		fmt.Printf("Paragraphs:          %d\n", stats.Paragraphs)
		fmt.Printf("Consensus triplets:  %d\n", stats.ConsensusTriplets)
		fmt.Printf("Candidate triplets:  %d\n", stats.CandidateTriplets)
		if len(stats.TopPredicates) > 0 {
			fmt.Println("\nTop predicates:")
			for _, pc := range stats.TopPredicates {
				fmt.Printf("  %-20s %d\n", pc.Predicate, pc.Count)
			}
		}
		return nil
	},
}

var kbExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored triplets as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		kb, err := openKnowledgeBase()
		if err != nil {
			return err
		}
		defer func() { _ = kb.Close() }()

		var w io.Writer = os.Stdout
		if exportPath != "" {
			f, err := os.Create(exportPath)
			if err != nil {
				return fmt.Errorf("create %s: %w", exportPath, err)
			}
			defer func() {
				if closeErr := f.Close(); closeErr != nil && err == nil {
					err = fmt.Errorf("close %s: %w", exportPath, closeErr)
				}
			}()
			w = f
		}
		return kb.ExportYAML(cmd.Context(), w, queryOpts)
	},
}

func init() {
	rootCmd.AddCommand(kbCmd)
	kbCmd.AddCommand(kbImportCmd, kbQueryCmd, kbStatsCmd, kbExportCmd)

	for _, cmd := range []*cobra.Command{kbQueryCmd, kbExportCmd} {
		cmd.Flags().StringVar(&queryOpts.Term, "term", "", "substring of subject or object")
		cmd.Flags().StringVar(&queryOpts.Subject, "subject", "", "exact subject")
		cmd.Flags().StringVar(&queryOpts.Predicate, "predicate", "", "exact predicate")
		cmd.Flags().StringVar(&queryOpts.Object, "object", "", "exact object")
		cmd.Flags().StringVar(&queryOpts.Origin, "origin", "", `"consensus" (default), a backend name, or "*"`)
		cmd.Flags().StringVar(&queryOpts.RunID, "run", "", "restrict to one run id")
		cmd.Flags().IntVar(&queryOpts.Limit, "limit", 50, "maximum rows")
	}
	kbQueryCmd.Flags().StringVar(&queryFormat, "format", "table", "output format (table, json, yaml)")
	kbExportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "write to file instead of stdout")
}

func writeRowsTable(w io.Writer, rows []store.TripletRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SUBJECT\tPREDICATE\tOBJECT\tORIGIN\tPARAGRAPH\tSOURCE")
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.Triplet[0], r.Triplet[1], r.Triplet[2], r.Origin, r.Paragraph, shorten(r.Source, 40))
	}
	return tw.Flush()
}

func shorten(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return "…" + strings.TrimSpace(string(runes[len(runes)-n+1:]))
}
