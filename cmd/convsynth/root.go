package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/capitalize-ai/convsynth/internal/config"
	"github.com/capitalize-ai/convsynth/internal/dataset"
	"github.com/capitalize-ai/convsynth/internal/llm"
	"github.com/capitalize-ai/convsynth/internal/model"
	natsclient "github.com/capitalize-ai/convsynth/internal/nats"
	"github.com/capitalize-ai/convsynth/internal/service"
	"github.com/capitalize-ai/convsynth/internal/store"
	"github.com/capitalize-ai/convsynth/pkg/logger"
	"github.com/capitalize-ai/convsynth/pkg/tracing"
)

const serviceName = "convsynth"

// app carries what every command shares once flags are parsed.
type app struct {
	envFile string
	cfg     *config.Config
	log     *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "convsynth",
		Short:         "Simulate listener and recommender dialogues with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				a.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("output-dir", "", "root directory of generated conversations")

	root.AddCommand(newGenerateCmd(a), newSummarizeCmd(a), newEvaluateCmd(a), newServeCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	a.cfg = config.Load()
	applyFlags(cmd, a.cfg)

	log, err := logger.NewFromEnv(a.cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.log = log
	logger.SetGlobal(log)
	return nil
}

// applyFlags overrides config values with flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}

	str("log-level", &cfg.LogLevel)
	str("output-dir", &cfg.OutputDir)
	str("provider", &cfg.LLMProvider)
	str("model", &cfg.LLMModel)
	str("data-dir", &cfg.DataDir)
	str("source", &cfg.DataSource)
	str("port", &cfg.ServerPort)
	num("turns", &cfg.NumTurns)
	num("goals", &cfg.GoalsToSample)
	if f.Changed("seed") {
		cfg.Seed, _ = f.GetInt64("seed")
	}
}

// addGenerationFlags registers the flags of commands that run generations.
func addGenerationFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("provider", "", "LLM provider (gemini, openai, anthropic)")
	f.String("model", "", "model name")
	f.String("data-dir", "", "directory holding users.json, tracks.json and playlists.json")
	f.String("source", "", "dataset name used in the output path")
	f.Int("turns", 0, "maximum number of turns")
	f.Int("goals", 0, "number of goal templates offered to the goal generator")
	f.Int64("seed", 0, "seed for goal sampling")
}

// deps is the wiring shared by generate and serve.
type deps struct {
	runner  *service.Runner
	nats    *natsclient.Client
	streams *natsclient.StreamManager
	closers []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// backend creates the configured provider's model backend.
func (a *app) backend(ctx context.Context) (llm.Backend, error) {
	cfg := a.cfg
	backend, err := llm.NewBackend(ctx, llm.Provider(cfg.LLMProvider), cfg.APIKey, llm.Options{BaseURL: cfg.LLMBaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", cfg.LLMProvider, err)
	}
	return backend, nil
}

func (a *app) build(ctx context.Context) (*deps, error) {
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &deps{}

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.TracingEndpoint)
		if err != nil {
			a.log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			d.closers = append(d.closers, func() { tracing.Shutdown(context.Background(), tp) })
		}
	}

	backend, err := a.backend(ctx)
	if err != nil {
		d.Close()
		return nil, err
	}

	orch := service.New(backend, service.Options{
		Model:         cfg.Model(),
		MaxTokens:     cfg.MaxOutputTokens,
		AudioBasePath: cfg.AudioBasePath,
		ImageBasePath: cfg.ImageBasePath,
		Defaults: model.Demographics{
			AgeGroup:          cfg.ProfileAgeGroup,
			Country:           cfg.ProfileCountry,
			Gender:            cfg.ProfileGender,
			PreferredLanguage: cfg.ProfileLanguage,
		},
		GoalsToSample: cfg.GoalsToSample,
		Seed:          cfg.Seed,
		APIDelay:      cfg.APIDelay,
		ModelTimeout:  cfg.ModelTimeout,
		MaxRetries:    cfg.ModelMaxRetries,
		Logger:        a.log,
	})

	var publisher service.Publisher
	if cfg.NATSURL != "" {
		client, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, a.log)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		d.closers = append(d.closers, client.Close)

		streams := natsclient.NewStreamManager(client)
		if err := streams.EnsureStream(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to ensure stream: %w", err)
		}
		d.nats, d.streams = client, streams
		publisher = streams
	}

	loader := dataset.NewLoader(cfg.DataDir, cfg.DataSource, cfg.ProfileSize, cfg.PoolSize)
	d.runner = service.NewRunner(orch, loader, store.New(cfg.OutputDir), publisher, a.log)

	a.log.Info("generation configured",
		zap.String("provider", cfg.LLMProvider),
		zap.String("model", cfg.Model()),
		zap.String("data_dir", cfg.DataDir),
		zap.String("output_dir", cfg.OutputDir),
		zap.Bool("run_events", publisher != nil),
	)
	return d, nil
}
