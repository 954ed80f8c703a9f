package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mailsender/internal/config"
	"mailsender/storage"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent deliveries from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cfg.JournalPath == "" {
				return errors.New("no journal configured; set journal_path")
			}
			j, err := storage.OpenJournal(cfg.JournalPath)
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries, 0 for all")
	return cmd
}

func printHistory(w io.Writer, entries []storage.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tOUTCOME\tRECIPIENT\tSUBJECT\tDURATION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Finished.Local().Format(time.DateTime),
			e.Outcome,
			e.Recipient,
			e.Subject,
			e.Finished.Sub(e.StartedAt).Round(time.Millisecond),
		)
	}
	return tw.Flush()
}
