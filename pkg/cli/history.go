package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/usecase/dashboard"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg          config
		transcriptID string
		offset       int64
		limit        int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Aliases:     []string{"i"},
			Usage:       "Transcript ID printed when the dashboard closed (lists transcripts when empty)",
			Destination: &transcriptID,
		},
		&cli.IntFlag{
			Name:        "offset",
			Usage:       "Number of transcripts to skip when listing",
			Destination: &offset,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum number of transcripts to list",
			Value:       20,
			Destination: &limit,
		},
	}
	flags = append(flags, transcriptFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "List saved conversation transcripts or print one of them",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}
			if storage == nil {
				return goerr.New("transcript-dir or transcript-bucket is required")
			}

			if transcriptID == "" {
				transcripts, err := dashboard.ListTranscripts(ctx, storage, int(offset), int(limit))
				if err != nil {
					return err
				}
				if len(transcripts) == 0 {
					fmt.Fprintln(c.Root().Writer, "No transcripts found")
					return nil
				}
				for _, t := range transcripts {
					fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\t%d messages\n",
						t.ID,
						t.ClientID,
						t.CreatedAt.Format("2006-01-02 15:04:05"),
						len(t.Messages),
					)
				}
				return nil
			}

			transcript, err := dashboard.LoadTranscript(ctx, storage, model.TranscriptID(transcriptID))
			if err != nil {
				return err
			}

			printTranscript(c.Root().Writer, transcript)
			return nil
		},
	}
}

func printTranscript(w io.Writer, t *model.Transcript) {
	fmt.Fprintf(w, "Transcript %s (client %s, %s)\n\n", t.ID, t.ClientID, t.CreatedAt.Format("2006-01-02 15:04:05"))

	for _, msg := range t.Messages {
		switch msg.Role {
		case model.RoleUser:
			fmt.Fprintf(w, "You: %s\n\n", msg.Content)
		case model.RoleAssistant:
			fmt.Fprintf(w, "FoodLink: %s\n\n", msg.Content)
		case model.RoleNotification:
			fmt.Fprintf(w, "[to %s] %s\n\n", msg.Recipient, msg.Content)
		}
	}

	if len(t.Assignments) > 0 {
		fmt.Fprintln(w, "Transfers:")
		for _, a := range t.Assignments {
			fmt.Fprintf(w, "  %s -> %s  %s: %s\n", a.Origin, a.Destination, a.Category, strings.Join(a.Items, ", "))
		}
	}
}
