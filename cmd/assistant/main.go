package main

import (
	"os"

	"github.com/spf13/cobra"

	"assistant/internal/config"
	appLog "assistant/internal/log"
)

const version = "0.1.0"

// options holds the persistent flags shared by every command.
type options struct {
	configPath string
	envPath    string
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Sync()
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "assistant",
		Short:        "Personal email and calendar assistant",
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "Path to config file")
	root.PersistentFlags().StringVar(&opts.envPath, "env", ".env", "Path to a .env file with secrets")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")

	root.AddCommand(
		newChatCmd(opts),
		newServeCmd(opts),
		newAgendaCmd(opts),
		newInboxCmd(opts),
	)
	return root
}
