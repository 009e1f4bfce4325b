// Package main provides the entry point for the datacache CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/datacache/internal/config"
	"github.com/dgnsrekt/datacache/pkg/datacache"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string

	rootCmd = &cobra.Command{
		Use:   "datacache",
		Short: "Inspect and script a persistent key/value cache",
		Long: paragraph(
			fmt.Sprintf("\nA key/value cache for the shell with %s, bounded size and persistence.", keyword("expiry")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
	}
)

// errNotCached is returned when a command needs a key that is absent.
var errNotCached = errors.New("not cached")

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	e, err := config.ParseEnv()
	if err != nil {
		return err
	}
	_, err = config.Load(viper.GetViper(), e)
	return err
}

// openCache builds a string cache from the loaded configuration. One-shot
// commands run without the reaper; they sweep explicitly.
func openCache(withReaper bool) (*datacache.Cache[string], error) {
	e, err := config.ParseEnv()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(viper.GetViper(), e)
	if err != nil {
		return nil, err
	}
	if !withReaper {
		cfg.CleanupInterval = 0
	}
	cfg.Logger = log.Default().WithPrefix("datacache")

	c, err := datacache.New[string](cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to open cache: %w", err)
	}
	return c, nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = rootCmd.ExecuteContext(ctx)
	stop()
	_ = closer()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringP("storage", "s", "", "storage type: memory, local, session or multi")
	rootCmd.PersistentFlags().StringP("dir", "d", "", "storage directory")
	rootCmd.PersistentFlags().String("prefix", "", "storage key prefix")
	rootCmd.PersistentFlags().String("policy", "", "eviction policy: lru, lfu or fifo")

	// Config bindings
	_ = viper.BindPFlag(config.KeyStorageType, rootCmd.PersistentFlags().Lookup("storage"))
	_ = viper.BindPFlag(config.KeyStorageDir, rootCmd.PersistentFlags().Lookup("dir"))
	_ = viper.BindPFlag(config.KeyStoragePrefix, rootCmd.PersistentFlags().Lookup("prefix"))
	_ = viper.BindPFlag(config.KeyEvictionPolicy, rootCmd.PersistentFlags().Lookup("policy"))

	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(
		setCmd, getCmd, hasCmd, deleteCmd, clearCmd,
		keysCmd, entriesCmd, statsCmd, cleanupCmd,
		execCmd, reapCmd,
		configCmd, manCmd,
	)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "datacache")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "datacache")}, dirs...)
	}

	if c := os.Getenv("DATACACHE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("datacache")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("datacache")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "datacache.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
