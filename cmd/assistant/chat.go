package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"assistant/internal/assistant"
	"assistant/internal/draft"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	gray   = color.New(color.FgHiBlack)
)

// handler is the part of the assistant the REPL drives.
type handler interface {
	Handle(ctx context.Context, utterance string) assistant.Response
	DraftState() (draft.State, *assistant.DraftView)
}

// lineReader yields one input line per call; io.EOF ends the session.
type lineReader interface {
	Readline() (string, error)
}

func newChatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, opts)
			if err != nil {
				return err
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:            "> ",
				HistoryFile:       filepath.Join(filepath.Dir(opts.configPath), "history"),
				InterruptPrompt:   "^C",
				EOFPrompt:         "exit",
				HistorySearchFold: true,
				Stdin:             readline.NewCancelableStdin(os.Stdin),
				Stdout:            os.Stdout,
				Stderr:            os.Stderr,
			})
			if err != nil {
				return fmt.Errorf("failed to initialize readline: %w", err)
			}
			defer rl.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Ask about your inbox or calendar. Type 'exit' or 'quit' to leave.")
			return chatLoop(ctx, a.assistant, rl, out)
		},
	}
}

func chatLoop(ctx context.Context, h handler, in lineReader, out io.Writer) error {
	for {
		line, err := in.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				break
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			break
		}

		printResponse(out, h.Handle(ctx, line))
		if state, d := h.DraftState(); state == draft.StateAwaitingConfirmation && d != nil {
			yellow.Fprintf(out, "Pending: %q at %s (%d min). Say yes to create it or no to discard it.\n",
				d.Summary, d.Start.Format("Mon Jan 2 15:04"), d.DurationMinutes)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	fmt.Fprintln(out, "Goodbye!")
	return nil
}

func printResponse(out io.Writer, resp assistant.Response) {
	if !resp.Success {
		red.Fprintln(out, "Error: "+resp.Message)
		return
	}
	green.Fprintln(out, resp.Message)
	switch data := resp.Data.(type) {
	case assistant.Agenda:
		printAgenda(out, data)
	case assistant.InboxReport:
		printInbox(out, data)
	}
}

func printAgenda(out io.Writer, a assistant.Agenda) {
	for _, e := range a.Events {
		when := e.Start.Format("Mon Jan 2 15:04")
		if e.AllDay {
			when = e.Start.Format("Mon Jan 2") + " (all day)"
		}
		fmt.Fprintf(out, "  %s  %s", when, e.Summary)
		if e.Location != "" {
			gray.Fprintf(out, "  @ %s", e.Location)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, a.Summary.Text())
	if a.Fallback {
		gray.Fprintln(out, "(summary computed locally)")
	}
}

func printInbox(out io.Writer, r assistant.InboxReport) {
	for _, m := range r.Summary.KeyMessages {
		fmt.Fprintf(out, "  [%s] %s: %s\n", m.Priority, m.From, m.Subject)
		if m.Summary != "" {
			gray.Fprintf(out, "      %s\n", m.Summary)
		}
	}
	if len(r.Summary.ActionItems) > 0 {
		fmt.Fprintln(out, "Action items:")
		for _, item := range r.Summary.ActionItems {
			fmt.Fprintf(out, "  - %s\n", item)
		}
	}
}
