package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hmoscout/ingest-cli/internal/model"
)

var (
	ingestSource      string
	ingestForceUpdate bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run an ingestion pass over the configured sources",
	Long:  "Fetches every configured source, reconciles records against the property store, and prints a per-source summary. A failing source never aborts the run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		o, err := initOrchestrator(st, ingestForceUpdate)
		if err != nil {
			return err
		}

		run := o.Run(ctx, ingestSource)
		formatRun(os.Stdout, run)

		if run.Status == model.RunStatusFailed {
			return fmt.Errorf("ingestion run %s failed: %s", truncateID(run.ID), run.Error)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "run a single source by name")
	ingestCmd.Flags().BoolVar(&ingestForceUpdate, "force-update", false, "let re-derived numeric fields overwrite stored values")
	rootCmd.AddCommand(ingestCmd)
}

// formatRun writes a per-source summary table.
func formatRun(out io.Writer, run *model.IngestionRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tSTATUS\tCREATED\tUPDATED\tSKIPPED\tERRORS\tDURATION")
	for _, s := range run.Sources {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			s.Source,
			s.Status,
			s.Created,
			s.Updated,
			s.Skipped,
			len(s.Errors)+s.TruncatedErrors,
			s.Duration.Round(time.Millisecond),
		)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nRun %s: %s (%d created, %d updated)\n",
		truncateID(run.ID), run.Status, run.TotalCreated(), run.TotalUpdated())

	for _, s := range run.Sources {
		for _, e := range s.Errors {
			_, _ = fmt.Fprintf(out, "  [%s] %s\n", s.Source, e)
		}
		if s.TruncatedErrors > 0 {
			_, _ = fmt.Fprintf(out, "  [%s] ... and %d more errors\n", s.Source, s.TruncatedErrors)
		}
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
