package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"assistant/internal/briefing"
	appLog "assistant/internal/log"
	"assistant/internal/web"
)

func newServeCmd(opts *options) *cobra.Command {
	var listen string
	var briefNow bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled briefing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appLog.Info("assistant starting", "version", version)

			// Root context with cancellation on SIGINT/SIGTERM.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case sig := <-sigCh:
					appLog.Info("signal received, shutting down", "signal", sig.String())
					cancel()
				case <-ctx.Done():
				}
			}()

			a, err := setup(ctx, opts)
			if err != nil {
				return err
			}
			if listen != "" {
				a.cfg.Listen = listen
			}

			var briefings web.Briefings
			if a.cfg.Briefing.Cron != "" {
				sched, err := briefing.New(a.assistant, a.cfg.Briefing.Cron, a.cfg.Briefing.Days, a.cfg.Location())
				if err != nil {
					return err
				}
				if briefNow {
					if _, err := sched.RunOnce(ctx); err != nil {
						appLog.Error("initial briefing failed", err)
					}
				}
				sched.Start()
				defer func() {
					select {
					case <-sched.Stop().Done():
					case <-time.After(5 * time.Second):
						appLog.Warn("briefing still running at shutdown")
					}
				}()
				briefings = sched
			}

			srv := web.NewServer(a.cfg, a.assistant, briefings)
			if err := srv.Run(ctx); err != nil {
				appLog.Error("HTTP server failed", err, "listen", a.cfg.Listen)
				return err
			}
			appLog.Info("assistant exiting")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	cmd.Flags().BoolVar(&briefNow, "brief-now", false, "Build a briefing immediately at startup")
	return cmd
}
