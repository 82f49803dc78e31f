package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAgendaCmd(opts *options) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "List and summarize upcoming events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if days <= 0 {
				days = a.cfg.Calendar.HorizonDays
			}
			agenda, err := a.assistant.Agenda(cmd.Context(), days)
			if err != nil {
				return err
			}
			printAgenda(cmd.OutOrStdout(), agenda)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Days ahead to list (default: calendar.horizon_days)")
	return cmd
}

func newInboxCmd(opts *options) *cobra.Command {
	var query string
	var maxEmails int

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Summarize recent email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			report, err := a.assistant.SummarizeInbox(cmd.Context(), query, maxEmails)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			green.Fprintf(out, "%d emails matching %q\n", report.Count, report.Query)
			fmt.Fprintln(out, report.Summary.Overview)
			printInbox(out, report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "in:inbox", "Mail query (from:, subject:, is:unread, words)")
	cmd.Flags().IntVarP(&maxEmails, "max", "n", 0, "Maximum emails to read (default: summarize.max_emails)")
	return cmd
}
