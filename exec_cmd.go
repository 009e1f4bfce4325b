package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/dgnsrekt/datacache/pkg/datacache"
	"github.com/spf13/cobra"
)

var (
	execTTL time.Duration

	execCmd = &cobra.Command{
		Use:   "exec KEY -- COMMAND [ARGS...]",
		Short: "Cache the output of a command",
		Long: paragraph(fmt.Sprintf("\n%s COMMAND's stdout under KEY and print it. While the entry is live, "+
			"later runs print the cached output without running COMMAND.", keyword("Cache"))),
		Example: paragraph("datacache exec weather --ttl 10m -- curl -s wttr.in"),
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.ArgsLenAtDash() != 1 {
				return errors.New("separate KEY from COMMAND with --")
			}

			c, err := openCache(false)
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			var opts []datacache.SetOption
			if cmd.Flags().Changed("ttl") {
				opts = append(opts, datacache.WithTTL(execTTL))
			}

			out, err := c.GetOrSet(cmd.Context(), args[0], runCommand(args[1:]), opts...)
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
)

func init() {
	execCmd.Flags().DurationVar(&execTTL, "ttl", 0, "time to live (default from config, 0 never expires)")
}

// runCommand returns a compute function yielding argv's stdout. A failing
// command is not cached.
func runCommand(argv []string) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		c := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
		c.Stdin = os.Stdin
		c.Stderr = os.Stderr

		out, err := c.Output()
		if err != nil {
			return "", fmt.Errorf("unable to run command: %w", err)
		}
		return string(out), nil
	}
}
