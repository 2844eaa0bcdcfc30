package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/foodlink/foodlink/pkg/repository"
	"github.com/foodlink/foodlink/pkg/usecase/logistics"
	"github.com/foodlink/foodlink/pkg/usecase/stats"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func statsCommand() *cli.Command {
	var (
		dbFile    string
		policyDir string
		preview   bool
	)

	return &cli.Command{
		Name:      "stats",
		Usage:     "Show headline figures and a matching preview for a seed file",
		ArgsUsage: "<seed-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "db-file",
				Aliases:     []string{"f"},
				Usage:       "YAML or JSON seed file",
				Sources:     cli.EnvVars("FOODLINK_DB_FILE"),
				Destination: &dbFile,
			},
			&cli.StringFlag{
				Name:        "policy-dir",
				Usage:       "Directory of Rego policies applied to the preview",
				Sources:     cli.EnvVars("FOODLINK_POLICY_DIR"),
				Destination: &policyDir,
			},
			&cli.BoolFlag{
				Name:        "preview",
				Usage:       "Also print the transfers the matcher would assign",
				Value:       true,
				Destination: &preview,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if dbFile == "" {
				dbFile = c.Args().First()
			}
			if dbFile == "" {
				return goerr.New("seed file is required")
			}

			db, err := repository.LoadFile(dbFile)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			printStats(w, db)

			if !preview {
				return nil
			}

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

			result, err := logistics.Match(ctx, db, filter)
			if err != nil {
				return err
			}
			printPreview(w, result)
			return nil
		},
	}
}

func printStats(w io.Writer, db *model.Database) {
	st := stats.Derive(db)
	fmt.Fprintf(w, "Suppliers:           %d\n", len(db.Suppliers()))
	fmt.Fprintf(w, "Demanders:           %d\n", len(db.Demanders()))
	fmt.Fprintf(w, "Most common missing: %s\n", orDash(st.MostCommonMissing))
	fmt.Fprintf(w, "Most common extra:   %s\n", orDash(st.MostCommonExtra))
	fmt.Fprintf(w, "Top donor:           %s\n", orDash(st.TopDonor))
}

func printPreview(w io.Writer, result *logistics.Result) {
	fmt.Fprintln(w, "\nTransfers:")
	if len(result.Assignments) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, a := range result.Assignments {
		fmt.Fprintf(w, "  %s -> %s  %s: %s\n", a.Origin, a.Destination, a.Category, strings.Join(a.Items, ", "))
	}

	if len(result.RemainingDemands) > 0 {
		fmt.Fprintln(w, "\nStill needed:")
		for _, name := range slices.Sorted(maps.Keys(result.RemainingDemands)) {
			fmt.Fprintf(w, "  %s: %s\n", name, strings.Join(result.RemainingDemands[name], ", "))
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
