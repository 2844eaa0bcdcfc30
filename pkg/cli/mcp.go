package cli

import (
	"context"

	"github.com/foodlink/foodlink/pkg/service/mcp"
	"github.com/foodlink/foodlink/pkg/usecase/logistics"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	var (
		cfg       config
		policyDir string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego policies applied to preview_matches",
			Sources:     cli.EnvVars("FOODLINK_POLICY_DIR"),
			Destination: &policyDir,
		},
	}
	flags = append(flags, repositoryFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the location database to MCP clients over stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, closeRepo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			var filter logistics.Filter
			if policyDir != "" {
				policy, err := logistics.LoadPolicy(ctx, policyDir)
				if err != nil {
					return err
				}
				if policy != nil {
					filter = policy
				}
			}

			return mcp.New(repo, filter).Run(ctx)
		},
	}
}
