package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dgnsrekt/datacache/pkg/datacache"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	statsJSON bool

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache metrics",
		Long: paragraph(fmt.Sprintf("\n%s the cache's counters and state. Counters cover the entries "+
			"loaded by this invocation.", keyword("Show"))),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := openCache(false)
			if err != nil {
				return err
			}
			defer c.Close() //nolint:errcheck

			s := c.Stats()
			if statsJSON {
				return writeStatsJSON(cmd.OutOrStdout(), s)
			}
			writeStats(cmd.OutOrStdout(), s)
			return nil
		},
	}
)

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print as JSON")
}

// statsOutput is the JSON form of datacache.Stats.
type statsOutput struct {
	Hits               int64   `json:"hits"`
	Misses             int64   `json:"misses"`
	Sets               int64   `json:"sets"`
	Deletes            int64   `json:"deletes"`
	Evictions          int64   `json:"evictions"`
	Expirations        int64   `json:"expirations"`
	PersistErrors      int64   `json:"persistErrors"`
	HitRate            float64 `json:"hitRate"`
	ItemCount          int     `json:"itemCount"`
	ExpiredCount       int     `json:"expiredCount"`
	ApproxSizeBytes    int64   `json:"approxSizeBytes"`
	OldestItemAgeMs    int64   `json:"oldestItemAgeMs"`
	NewestItemAgeMs    int64   `json:"newestItemAgeMs"`
	AverageAccessCount float64 `json:"averageAccessCount"`
	StorageType        string  `json:"storageType"`
	EvictionPolicy     string  `json:"evictionPolicy"`
}

func writeStatsJSON(w io.Writer, s datacache.Stats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(statsOutput{
		Hits:               s.Hits,
		Misses:             s.Misses,
		Sets:               s.Sets,
		Deletes:            s.Deletes,
		Evictions:          s.Evictions,
		Expirations:        s.Expirations,
		PersistErrors:      s.PersistErrors,
		HitRate:            s.HitRate,
		ItemCount:          s.ItemCount,
		ExpiredCount:       s.ExpiredCount,
		ApproxSizeBytes:    s.ApproxSizeBytes,
		OldestItemAgeMs:    s.OldestItemAge.Milliseconds(),
		NewestItemAgeMs:    s.NewestItemAge.Milliseconds(),
		AverageAccessCount: s.AverageAccessCount,
		StorageType:        s.StorageType.String(),
		EvictionPolicy:     s.EvictionPolicy.String(),
	})
}

func writeStats(w io.Writer, s datacache.Stats) {
	now := time.Now()
	age := func(d time.Duration) string {
		if s.ItemCount == 0 {
			return "-"
		}
		return humanize.RelTime(now.Add(-d), now, "ago", "from now")
	}

	rows := []struct {
		label string
		value string
	}{
		{"storage", fmt.Sprintf("%s (%s eviction)", s.StorageType, s.EvictionPolicy)},
		{"entries", humanize.Comma(int64(s.ItemCount))},
		{"expired", humanize.Comma(int64(s.ExpiredCount))},
		{"size", humanize.Bytes(uint64(max(s.ApproxSizeBytes, 0)))}, //nolint:gosec
		{"oldest", age(s.OldestItemAge)},
		{"newest", age(s.NewestItemAge)},
		{"avg reads", humanize.FtoaWithDigits(s.AverageAccessCount, 2)},
		{"hits", humanize.Comma(s.Hits)},
		{"misses", humanize.Comma(s.Misses)},
		{"hit rate", fmt.Sprintf("%.1f%%", s.HitRate*100)},
		{"sets", humanize.Comma(s.Sets)},
		{"deletes", humanize.Comma(s.Deletes)},
		{"evictions", humanize.Comma(s.Evictions)},
		{"expirations", humanize.Comma(s.Expirations)},
		{"persist errors", humanize.Comma(s.PersistErrors)},
	}

	for _, r := range rows {
		fmt.Fprintf(w, "%s %s\n", faint(fmt.Sprintf("%-15s", r.label)), r.value)
	}
}
