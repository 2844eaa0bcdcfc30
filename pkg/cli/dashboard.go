package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/foodlink/foodlink/pkg/adapter"
	"github.com/foodlink/foodlink/pkg/tui"
	"github.com/foodlink/foodlink/pkg/usecase/dashboard"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// clientConfig holds the flags shared by the dashboard and chat clients
type clientConfig struct {
	url       string
	clientID  string
	reconnect time.Duration
}

func clientFlags(cfg *clientConfig) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "url",
			Aliases:     []string{"u"},
			Usage:       "Hub WebSocket endpoint",
			Value:       "ws://127.0.0.1:8000/ws",
			Sources:     cli.EnvVars("FOODLINK_URL"),
			Destination: &cfg.url,
		},
		&cli.StringFlag{
			Name:        "client-id",
			Usage:       "Client id sent to the hub (random when empty)",
			Sources:     cli.EnvVars("FOODLINK_CLIENT_ID"),
			Destination: &cfg.clientID,
		},
		&cli.DurationFlag{
			Name:        "reconnect",
			Usage:       "Initial delay before redialing a lost connection (0 disables reconnect)",
			Value:       time.Second,
			Sources:     cli.EnvVars("FOODLINK_RECONNECT"),
			Destination: &cfg.reconnect,
		},
	}
}

// newSession builds a socket session for the client flags
func (x *clientConfig) newSession(state *dashboard.State) (*dashboard.Session, error) {
	var opts []dashboard.Option
	if x.reconnect > 0 {
		opts = append(opts, dashboard.WithReconnect(x.reconnect, 30*time.Second))
	}

	session, err := dashboard.New(dashboard.NewInput{
		Dialer:   adapter.NewDialer(),
		URL:      x.url,
		ClientID: newClientID(x.clientID),
		State:    state,
	}, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create session")
	}
	return session, nil
}

func dashboardCommand(logLevel *string) *cli.Command {
	var (
		cfg     config
		client  clientConfig
		logFile string
		mirror  bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "log-file",
			Usage:       "Write logs to this file while the dashboard is open (discarded when empty)",
			Sources:     cli.EnvVars("FOODLINK_LOG_FILE"),
			Destination: &logFile,
		},
		&cli.BoolFlag{
			Name:        "notifications-in-chat",
			Usage:       "Also show delivery notifications in the conversation",
			Value:       true,
			Destination: &mirror,
		},
	}
	flags = append(flags, clientFlags(&client)...)
	flags = append(flags, transcriptFlags(&cfg)...)

	return &cli.Command{
		Name:  "dashboard",
		Usage: "Open the interactive dashboard",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger, closer, err := logging.OpenFile(*logLevel, logFile)
			if err != nil {
				return err
			}
			defer closer.Close()
			ctx = logging.With(ctx, logger)

			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			var stateOpts []dashboard.StateOption
			if mirror {
				stateOpts = append(stateOpts, dashboard.WithNotificationMirror())
			}
			state := dashboard.NewState(stateOpts...)

			session, err := client.newSession(state)
			if err != nil {
				return err
			}
			defer session.Close()

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
				spinner.WithWriter(c.Root().ErrWriter),
				spinner.WithSuffix(" connecting to "+client.url),
			)
			sp.Start()
			err = session.Open(ctx)
			sp.Stop()
			if err != nil {
				return goerr.Wrap(err, "failed to connect to hub", goerr.V("url", client.url))
			}
			logger.Info("dashboard connected", "client_id", session.ClientID())

			if err := tui.Run(ctx, session, state, tui.WithTitle("FoodLink · "+session.ClientID().String())); err != nil {
				return err
			}

			if err := session.Close(); err != nil {
				logger.Warn("failed to close session", "error", err)
			}

			if storage != nil && len(state.Messages()) > 0 {
				transcript, err := dashboard.SaveTranscript(ctx, storage, session.ClientID(), state)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.Root().Writer, "Transcript saved: %s\n", transcript.ID)
			}
			return nil
		},
	}
}
