package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"gridscout.ai/internal/persistence/indexdb"
)

func (a *App) newRunsCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs recorded in a sqlite index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := indexdb.OpenSQLite(dbPath)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			defer idx.Close()
			rows, err := idx.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(a.stdout, "no runs recorded")
				return nil
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tOUTCOME\tSTEPS\tWORLD\tSEED\tMAPPED\tRECORDED")
			for _, r := range rows {
				mapped := 0.0
				if cells := r.Rows * r.Cols; cells > 0 {
					mapped = 100 * float64(r.KnownCells) / float64(cells)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%dx%d\t%d\t%.0f%%\t%s\n",
					r.RunID, r.Outcome, r.Steps, r.Rows, r.Cols, r.Seed, mapped, humanize.Time(r.RecordedAt))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "./data/index.db", "sqlite index path")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows (0 for all)")
	return cmd
}
