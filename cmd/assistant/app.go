package main

import (
	"context"
	"fmt"
	"path/filepath"

	_ "time/tzdata"

	"assistant/internal/assistant"
	"assistant/internal/chunk"
	"assistant/internal/config"
	"assistant/internal/ics"
	appLog "assistant/internal/log"
	"assistant/internal/llm"
	"assistant/internal/mail"
	"assistant/internal/schedule"
	"assistant/internal/summarize"
)

// app is the wired object graph behind every command.
type app struct {
	cfg       *config.Config
	events    *ics.Store
	mail      *mail.Store
	assistant *assistant.Assistant
}

// loadConfig reads secrets and the config file and applies logging settings.
func loadConfig(opts *options) (*config.Config, error) {
	envFiles := []string{opts.envPath, filepath.Join(filepath.Dir(opts.configPath), ".env")}
	if err := config.LoadEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", opts.configPath)
		return nil, err
	}

	appLog.SetFormat(cfg.LogFormat)
	level, ok := appLog.ParseLevel(cfg.LogLevel)
	if !ok {
		appLog.Warn("unknown log level; using INFO", "log_level", cfg.LogLevel)
	}
	if opts.verbose {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	appLog.Info("effective config",
		"config_path", opts.configPath,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"model", cfg.LLM.Model,
		"calendar", cfg.Calendar.Path,
		"subscriptions", len(cfg.Calendar.Subscriptions),
		"maildir", cfg.Mail.Maildir,
		"size_unit", cfg.Summarize.SizeUnit,
		"briefing_cron", cfg.Briefing.Cron,
	)
	return cfg, nil
}

// newCompleter returns the Gemini client, or a completer that always fails
// when no API key is configured so listings use the local analysis.
func newCompleter(ctx context.Context, cfg *config.Config) (llm.Completer, error) {
	key := cfg.APIKey()
	if key == "" {
		appLog.Warn("no API key set; text generation disabled", "env", cfg.LLM.APIKeyEnv)
		return llm.Unavailable, nil
	}
	g, err := llm.NewGenAI(ctx, key, cfg.LLM.Model, cfg.LLM.Temperature)
	if err != nil {
		return nil, err
	}
	appLog.Info("text generation ready", "completer", g.Name())
	return g, nil
}

func newApp(cfg *config.Config, completer llm.Completer) (*app, error) {
	loc := cfg.Location()

	mailStore, err := mail.New(mail.Config{
		Maildir:   cfg.Mail.Maildir,
		Outbox:    cfg.Mail.Outbox,
		Address:   cfg.Mail.Address,
		CacheSize: cfg.Mail.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("mail store: %w", err)
	}

	subs := make([]ics.Source, 0, len(cfg.Calendar.Subscriptions))
	for _, s := range cfg.Calendar.Subscriptions {
		subs = append(subs, ics.Source{ID: s.ID, Name: s.Name, URL: s.URL})
	}
	events := ics.NewStore(ics.StoreConfig{
		Path:          cfg.Calendar.Path,
		Location:      loc,
		Subscriptions: subs,
		Fetcher:       ics.NewFetcher(cfg.Calendar.CacheDir, nil),
		Notifier:      mailStore,
	})

	size := chunk.TextSize(chunk.Unit(cfg.Summarize.SizeUnit))

	a := assistant.New(assistant.Config{
		Completer: completer,
		Events:    events,
		Mail:      mailStore,
		Inbox: &summarize.Inbox{
			Completer:    completer,
			MaxBatchSize: cfg.Summarize.MaxBatchChars,
			Size:         size,
			Parallelism:  cfg.Summarize.Parallelism,
		},
		Schedule: &schedule.Analyzer{
			Completer:    completer,
			Location:     loc,
			MaxBatchSize: cfg.Summarize.MaxBatchChars,
			Size:         size,
		},
		Location:               loc,
		DefaultDurationMinutes: cfg.Calendar.DefaultDurationMinutes,
		MaxEmails:              cfg.Summarize.MaxEmails,
	})

	return &app{cfg: cfg, events: events, mail: mailStore, assistant: a}, nil
}

// setup loads config and wires the app for a command.
func setup(ctx context.Context, opts *options) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, completer)
}
