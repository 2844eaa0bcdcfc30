package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/usecase/dashboard"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		client      clientConfig
		historyFile string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "history-file",
			Usage:       "File keeping the input line history",
			Sources:     cli.EnvVars("FOODLINK_CHAT_HISTORY"),
			Destination: &historyFile,
		},
	}
	flags = append(flags, clientFlags(&client)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Line-oriented chat with the hub",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				HistoryFile:     historyFile,
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize line editor")
			}
			defer rl.Close()

			state := dashboard.NewState(dashboard.WithNotificationMirror())
			session, err := client.newSession(state)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.Open(ctx); err != nil {
				return goerr.Wrap(err, "failed to connect to hub", goerr.V("url", client.url))
			}

			ctx, cancel := context.WithCancel(ctx)
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				followState(ctx, state, rl.Stdout())
			}()
			defer func() {
				cancel()
				wg.Wait()
			}()

			fmt.Fprintf(rl.Stdout(), "Connected as %s. Type 'exit' to quit.\n", session.ClientID())

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						return nil
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					return nil
				}

				if err := session.Send(ctx, line); err != nil {
					if errors.Is(err, dashboard.ErrNotConnected) {
						fmt.Fprintln(rl.Stdout(), "(not connected, message kept locally)")
						continue
					}
					logging.From(ctx).Error("failed to send message", "error", err)
				}
			}
		},
	}
}

// followState prints conversation changes as they arrive until ctx is done
func followState(ctx context.Context, state *dashboard.State, w io.Writer) {
	var p streamPrinter
	for {
		select {
		case <-ctx.Done():
			return
		case <-state.Updates():
			if out := p.next(state.Messages()); out != "" {
				fmt.Fprint(w, out)
			}
		}
	}
}

// streamPrinter turns successive snapshots of the conversation into the text that
// was not printed yet. User entries are skipped since the user typed them.
type streamPrinter struct {
	index  int
	offset int
}

func (p *streamPrinter) next(messages []*model.Message) string {
	var b strings.Builder
	for p.index < len(messages) {
		msg := messages[p.index]
		last := p.index == len(messages)-1

		switch msg.Role {
		case model.RoleAssistant:
			if p.offset == 0 && msg.Content != "" {
				b.WriteString("FoodLink: ")
			}
			if p.offset < len(msg.Content) {
				b.WriteString(msg.Content[p.offset:])
				p.offset = len(msg.Content)
			}
			if last {
				return b.String()
			}
			if p.offset > 0 {
				b.WriteString("\n")
			}

		case model.RoleNotification:
			fmt.Fprintf(&b, "[to %s] %s\n", msg.Recipient, msg.Content)
		}

		p.index++
		p.offset = 0
	}
	return b.String()
}
