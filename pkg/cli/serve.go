package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/foodlink/foodlink/pkg/repository"
	"github.com/foodlink/foodlink/pkg/service/hub"
	"github.com/foodlink/foodlink/pkg/tool"
	"github.com/foodlink/foodlink/pkg/tool/dispatch"
	"github.com/foodlink/foodlink/pkg/tool/inventory"
	"github.com/foodlink/foodlink/pkg/usecase/assistant"
	"github.com/foodlink/foodlink/pkg/usecase/logistics"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type serveConfig struct {
	addr          string
	envFile       string
	watch         bool
	policyDir     string
	matchSchedule string
	bqDataset     string
	bqTable       string
	rate          float64
	burst         int64
	metrics       bool
}

func serveCommand(logLevel *string) *cli.Command {
	var (
		cfg   config
		serve serveConfig
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Aliases:     []string{"a"},
			Usage:       "Listen address",
			Value:       "127.0.0.1:8000",
			Sources:     cli.EnvVars("FOODLINK_ADDR"),
			Destination: &serve.addr,
		},
		&cli.StringFlag{
			Name:        "env-file",
			Usage:       "Load environment variables from this file before starting",
			Value:       ".env",
			Destination: &serve.envFile,
		},
		&cli.BoolFlag{
			Name:        "watch",
			Usage:       "Reload the seed file given by --db-file when it changes",
			Sources:     cli.EnvVars("FOODLINK_WATCH"),
			Destination: &serve.watch,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego policies evaluated on every proposed transfer",
			Sources:     cli.EnvVars("FOODLINK_POLICY_DIR"),
			Destination: &serve.policyDir,
		},
		&cli.StringFlag{
			Name:        "match-schedule",
			Usage:       "Cron expression for periodic match-and-dispatch rounds",
			Sources:     cli.EnvVars("FOODLINK_MATCH_SCHEDULE"),
			Destination: &serve.matchSchedule,
		},
		&cli.StringFlag{
			Name:        "bigquery-dataset",
			Usage:       "BigQuery dataset receiving dispatched transfers",
			Sources:     cli.EnvVars("FOODLINK_BIGQUERY_DATASET"),
			Destination: &serve.bqDataset,
		},
		&cli.StringFlag{
			Name:        "bigquery-table",
			Usage:       "BigQuery table receiving dispatched transfers",
			Value:       "assignments",
			Sources:     cli.EnvVars("FOODLINK_BIGQUERY_TABLE"),
			Destination: &serve.bqTable,
		},
		&cli.FloatFlag{
			Name:        "rate",
			Usage:       "Inbound frames per second allowed per client (0 disables the limit)",
			Value:       5,
			Sources:     cli.EnvVars("FOODLINK_RATE"),
			Destination: &serve.rate,
		},
		&cli.IntFlag{
			Name:        "burst",
			Usage:       "Inbound frame burst allowed per client",
			Value:       10,
			Sources:     cli.EnvVars("FOODLINK_BURST"),
			Destination: &serve.burst,
		},
		&cli.BoolFlag{
			Name:        "metrics",
			Usage:       "Serve Prometheus metrics on /metrics",
			Value:       true,
			Sources:     cli.EnvVars("FOODLINK_METRICS"),
			Destination: &serve.metrics,
		},
	}
	flags = append(flags, repositoryFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the hub that dashboards connect to",
		Flags: flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Missing .env is normal; values from the real environment still apply.
			if err := godotenv.Load(serve.envFile); err == nil {
				logging.From(ctx).Debug("loaded environment file", "path", serve.envFile)
			}
			return ctx, nil
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if serve.watch && cfg.dbFile == "" {
				return goerr.New("--watch requires --db-file")
			}
			if serve.matchSchedule != "" {
				if err := hub.ValidateSchedule(serve.matchSchedule); err != nil {
					return err
				}
			}

			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			runner, err := serve.newRunner(ctx, cfg.project, repo, gemini)
			if err != nil {
				return err
			}

			responder, err := newResponder(repo, gemini, runner)
			if err != nil {
				return err
			}

			opts := []hub.Option{hub.WithRateLimit(serve.rate, int(serve.burst))}
			if serve.metrics {
				opts = append(opts, hub.WithMetrics(hub.NewMetrics()))
			}
			h := hub.New(repo, responder, opts...)

			return serve.run(ctx, h, runner, cfg.dbFile)
		},
	}
}

func (x *serveConfig) newRunner(ctx context.Context, project string, repo repository.Repository, gemini adapter.Gemini) (*logistics.Runner, error) {
	var opts []logistics.RunnerOption

	if x.policyDir != "" {
		policy, err := logistics.LoadPolicy(ctx, x.policyDir)
		if err != nil {
			return nil, err
		}
		if policy != nil {
			opts = append(opts, logistics.WithFilter(policy))
		}
	}

	var dispatchOpts []logistics.DispatchOption
	if gemini != nil {
		dispatchOpts = append(dispatchOpts, logistics.WithGemini(gemini))
	}
	opts = append(opts, logistics.WithDispatcher(logistics.NewDispatcher(dispatchOpts...)))

	if x.bqDataset != "" {
		if project == "" {
			return nil, goerr.New("--project is required for the BigQuery sink")
		}
		sink, err := adapter.NewBigQuery(ctx, project, x.bqDataset, x.bqTable)
		if err != nil {
			return nil, err
		}
		opts = append(opts, logistics.WithSink(sink))
	}

	return logistics.NewRunner(repo, opts...), nil
}

// newResponder picks the Gemini assistant with the intake tools, or the demo bot
// when Gemini is not configured
func newResponder(repo repository.Repository, gemini adapter.Gemini, runner *logistics.Runner) (assistant.Responder, error) {
	if gemini == nil {
		return assistant.NewDemo(), nil
	}

	saveItems, err := inventory.New(repo)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create inventory tool")
	}
	registry := tool.New(saveItems, dispatch.New(runner))

	return assistant.NewGemini(gemini, registry, assistant.WithRepository(repo)), nil
}

func (x *serveConfig) run(ctx context.Context, h *hub.Hub, runner *logistics.Runner, dbFile string) error {
	logger := logging.From(ctx)
	srv := &http.Server{
		Addr:              x.addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.Info("hub listening", "addr", x.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return goerr.Wrap(err, "hub server failed", goerr.V("addr", x.addr))
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		h.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shut down hub server")
		}
		logger.Info("hub stopped")
		return nil
	})

	if x.matchSchedule != "" {
		eg.Go(func() error {
			return h.RunSchedule(egCtx, x.matchSchedule, runner)
		})
	}

	if x.watch {
		eg.Go(func() error {
			return h.WatchSeed(egCtx, dbFile)
		})
	}

	return eg.Wait()
}
