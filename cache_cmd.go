package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/datacache/internal/config"
	"github.com/dgnsrekt/datacache/pkg/datacache"
	"github.com/dgnsrekt/datacache/pkg/datacache/storage"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	setTTL      time.Duration
	setMetadata map[string]string
	getCopy     bool
	keysMatch   string
	pruneOthers bool

	setCmd = &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a value",
		Long:  paragraph(fmt.Sprintf("\n%s a value under KEY. Use - as VALUE to read it from stdin.", keyword("Store"))),
		Example: paragraph("datacache set token abc123 --ttl 1h\n" +
			"curl -s example.com | datacache set page -"),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := args[1]
			if value == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("unable to read from stdin: %w", err)
				}
				value = string(b)
			}

			c, err := openCache(false)
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			return c.Set(args[0], value, setOptions(cmd)...)
		},
	}

	getCmd = &cobra.Command{
		Use:   "get KEY",
		Short: "Print a cached value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(false)
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			value, ok := c.Get(args[0])
			if !ok {
				return fmt.Errorf("%q: %w", args[0], errNotCached)
			}

			if getCopy {
				if err := clipboard.WriteAll(value); err != nil {
					return fmt.Errorf("unable to copy to clipboard: %w", err)
				}
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
			return err
		},
	}

	hasCmd = &cobra.Command{
		Use:   "has KEY",
		Short: "Report whether a live entry exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCache(false)
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			_, err = fmt.Fprintln(cmd.OutOrStdout(), c.Has(args[0]))
			return err
		},
	}

	deleteCmd = &cobra.Command{
		Use:     "delete KEY",
		Aliases: []string{"rm"},
		Short:   "Remove an entry",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, err := openCache(false)
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			if !c.Delete(args[0]) {
				return fmt.Errorf("%q: %w", args[0], errNotCached)
			}
			return nil
		},
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry under the configured prefix",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			c, err := openCache(false)
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			c.Clear()
			return nil
		},
	}

	keysCmd = &cobra.Command{
		Use:     "keys",
		Aliases: []string{"ls"},
		Short:   "List live keys",
		Example: paragraph("datacache keys\ndatacache keys --match usr"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openCache(false)
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			keys := c.Keys()
			if keysMatch != "" {
				matches := fuzzy.Find(keysMatch, keys)
				keys = make([]string, 0, len(matches))
				for _, m := range matches {
					keys = append(keys, m.Str)
				}
			}

			w := cmd.OutOrStdout()
			for _, k := range keys {
				fmt.Fprintln(w, k)
			}
			return nil
		},
	}

	entriesCmd = &cobra.Command{
		Use:   "entries",
		Short: "List live keys with their values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openCache(false)
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			printEntries(cmd.OutOrStdout(), c.Entries(), outputWidth())
			return nil
		},
	}

	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired entries",
		Long: paragraph(fmt.Sprintf("\n%s expired entries from the cache and its storage. "+
			"With --sessions, also prune idle session directories.", keyword("Remove"))),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openCache(false)
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			removed := c.Cleanup()
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired %s\n", removed, plural(removed, "entry", "entries"))

			if !pruneOthers {
				return nil
			}
			pruned, err := pruneSessions()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d idle %s\n", pruned, plural(pruned, "session", "sessions"))
			return nil
		},
	}
)

func init() {
	setCmd.Flags().DurationVar(&setTTL, "ttl", 0, "time to live (default from config, 0 never expires)")
	setCmd.Flags().StringToStringVarP(&setMetadata, "meta", "m", nil, "metadata as key=value pairs")
	getCmd.Flags().BoolVarP(&getCopy, "copy", "c", false, "also copy the value to the clipboard")
	keysCmd.Flags().StringVar(&keysMatch, "match", "", "fuzzy filter keys by pattern")
	cleanupCmd.Flags().BoolVar(&pruneOthers, "sessions", false, "prune idle session directories")
}

func setOptions(cmd *cobra.Command) []datacache.SetOption {
	var opts []datacache.SetOption
	if cmd.Flags().Changed("ttl") {
		opts = append(opts, datacache.WithTTL(setTTL))
	}
	if len(setMetadata) > 0 {
		meta := make(map[string]any, len(setMetadata))
		for k, v := range setMetadata {
			meta[k] = v
		}
		opts = append(opts, datacache.WithMetadata(meta))
	}
	return opts
}

// pruneSessions removes session directories other than the current one
// that have been idle longer than the configured maximum age.
func pruneSessions() (int, error) {
	e, err := config.ParseEnv()
	if err != nil {
		return 0, err
	}
	maxAge, err := config.SessionMaxAge(viper.GetViper())
	if err != nil {
		return 0, err
	}

	prefix := viper.GetString(config.KeyStoragePrefix)
	dir := ""
	if viper.GetString(config.KeyStorageType) == datacache.StorageSession.String() {
		dir = config.ExpandPath(viper.GetString(config.KeyStorageDir))
	}

	session, err := storage.NewSessionAdapter(nil, dir, e.SessionID, prefix)
	if err != nil {
		return 0, err
	}
	defer session.Close() //nolint:errcheck

	pruned, err := session.PruneStale(maxAge)
	if err != nil {
		log.Warn("Some sessions could not be pruned", "err", err)
	}
	return pruned, nil
}

// outputWidth returns the terminal width, or 80 when stdout is not a
// terminal.
func outputWidth() int {
	fd := int(os.Stdout.Fd()) //nolint:gosec
	if term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			return w
		}
	}
	return 80
}

// printEntries writes one aligned "key  value" line per entry, truncating
// values to fit width.
func printEntries(w io.Writer, entries []datacache.KeyValue[string], width int) {
	keyWidth := 0
	for _, e := range entries {
		keyWidth = max(keyWidth, runewidth.StringWidth(e.Key))
	}

	for _, e := range entries {
		value := strings.ReplaceAll(e.Value, "\n", `\n`)
		if avail := width - keyWidth - 2; avail > 1 {
			value = runewidth.Truncate(value, avail, "…")
		}
		fmt.Fprintf(w, "%s  %s\n", keyword(runewidth.FillRight(e.Key, keyWidth)), value)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
