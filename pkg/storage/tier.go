package storage

import (
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Tier is a physical prefix with its own compression and retention policy.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// Config holds tier retention and compression settings.
type Config struct {
	HotRetentionDays  int
	WarmRetentionDays int
	ColdRetentionDays int

	HotCompression  string
	WarmCompression string
	ColdCompression string
}

// DefaultConfig mirrors the standard 7/30/90 day layout with fast codecs
// on the access tiers and a higher-ratio codec on cold.
func DefaultConfig() Config {
	return Config{
		HotRetentionDays:  7,
		WarmRetentionDays: 30,
		ColdRetentionDays: 90,
		HotCompression:    "snappy",
		WarmCompression:   "snappy",
		ColdCompression:   "gzip",
	}
}

func (c Config) retention(tier Tier) time.Duration {
	days := 0
	switch tier {
	case TierHot:
		days = c.HotRetentionDays
	case TierWarm:
		days = c.WarmRetentionDays
	case TierCold:
		days = c.ColdRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

func (c Config) compression(tier Tier) string {
	switch tier {
	case TierHot:
		return c.HotCompression
	case TierWarm:
		return c.WarmCompression
	case TierCold:
		return c.ColdCompression
	}
	return ""
}

// codecOption maps a configured codec name to a parquet writer option.
func codecOption(name string) (parquet.WriterOption, error) {
	switch name {
	case "snappy", "":
		return parquet.Compression(&parquet.Snappy), nil
	case "gzip":
		return parquet.Compression(&parquet.Gzip), nil
	case "zstd":
		return parquet.Compression(&parquet.Zstd), nil
	case "uncompressed":
		return parquet.Compression(&parquet.Uncompressed), nil
	}
	return nil, fmt.Errorf("unknown compression codec: %q", name)
}

// SelectTiers derives which tiers could hold data in [start, end] at the
// given reference time. When no tier qualifies the hot tier is scanned as
// the default.
func SelectTiers(now, start, end time.Time, cfg Config) []Tier {
	hotEdge := now.Add(-cfg.retention(TierHot))
	warmEdge := now.Add(-cfg.retention(TierWarm))
	coldEdge := now.Add(-cfg.retention(TierCold))

	var tiers []Tier
	if !end.Before(hotEdge) {
		tiers = append(tiers, TierHot)
	}
	if start.Before(hotEdge) && !end.Before(warmEdge) {
		tiers = append(tiers, TierWarm)
	}
	if start.Before(warmEdge) && !end.Before(coldEdge) {
		tiers = append(tiers, TierCold)
	}
	if len(tiers) == 0 {
		tiers = []Tier{TierHot}
	}
	return tiers
}
