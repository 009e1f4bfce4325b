package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/datacache/internal/config"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	reapInterval time.Duration

	reapCmd = &cobra.Command{
		Use:   "reap",
		Short: "Sweep expired entries in the foreground",
		Long: paragraph(fmt.Sprintf("\n%s expired entries every cleanup interval until interrupted. "+
			"Changes to cleanup.interval in the config file apply without a restart.", keyword("Sweep"))),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openCache(true)
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			reaper := c.Reaper()
			if cmd.Flags().Changed("interval") {
				reaper.Reset(reapInterval)
			}
			if reaper.Interval() <= 0 {
				return fmt.Errorf("cleanup interval is %s: nothing to do", reaper.Interval())
			}

			if removed := c.Cleanup(); removed > 0 {
				log.Info("Removed expired entries", "count", removed)
			}

			if viper.ConfigFileUsed() != "" && !cmd.Flags().Changed("interval") {
				viper.OnConfigChange(func(e fsnotify.Event) {
					interval, err := config.Duration(viper.GetViper(), config.KeyCleanupInterval)
					if err == nil && interval < 0 {
						err = fmt.Errorf("negative interval %s", interval)
					}
					if err != nil {
						log.Warn("Ignoring invalid cleanup interval", "path", e.Name, "err", err)
						return
					}
					if interval == reaper.Interval() {
						return
					}
					reaper.Reset(interval)
					log.Info("Cleanup interval changed", "interval", interval)
				})
				viper.WatchConfig()
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Reaping every %s, press ctrl+c to stop\n", reaper.Interval())
			<-cmd.Context().Done()
			return nil
		},
	}
)

func init() {
	reapCmd.Flags().DurationVar(&reapInterval, "interval", 0, "sweep interval (default from config)")
}
