package app

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/loomdrop/backend/internal/config"
	"github.com/loomdrop/backend/internal/db"
	"github.com/loomdrop/backend/internal/models"
	"github.com/loomdrop/backend/internal/repositories"
)

func newEventsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent download resolution outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errDatabaseURLRequired
			}

			ctx := cmd.Context()
			pool, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			events, err := repositories.NewPostgresEventLog(pool).Recent(ctx, limit)
			if err != nil {
				return err
			}
			return writeEvents(cmd.OutOrStdout(), events, time.Now())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	return cmd
}

func writeEvents(out io.Writer, events []models.ResolutionEvent, now time.Time) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(out, "no resolution events recorded")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tVIDEO\tSTATUS\tOUTCOME\tTITLE\tDURATION")
	for _, event := range events {
		title := "resolved"
		if event.TitleFallback {
			title = "default"
		}
		video := event.VideoID
		if video == "" {
			video = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			humanize.RelTime(event.CreatedAt, now, "ago", "from now"),
			video, event.Status, event.Outcome, title, event.Duration.Round(time.Millisecond))
	}
	return w.Flush()
}
