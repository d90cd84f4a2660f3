package config

import (
	"flag"
	"strings"
)

var (
	flagConfig      = flag.String("config", "", "Path to config file")
	flagDebug       = flag.Bool("debug", false, "Enable debug logging")
	flagMap         = flag.String("map", "", "TMX map to load, relative to the asset roots")
	flagAssets      = flag.String("assets", "", "Comma-separated asset roots")
	flagBucketTiles = flag.Int("bucket-tiles", -1, "Index bucket edge in tiles (0 = automatic)")
	flagWatch       = flag.Bool("watch", false, "Reload the map when asset files change")
	flagSimulate    = flag.Bool("simulate", false, "Run the walker simulation")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagMap != "" {
		cfg.Assets.Map = *flagMap
	}
	if *flagAssets != "" {
		cfg.Assets.Roots = strings.Split(*flagAssets, ",")
	}
	if *flagBucketTiles >= 0 {
		cfg.Collision.BucketTiles = *flagBucketTiles
	}
	if *flagWatch {
		cfg.Assets.Watch = true
	}
	if *flagSimulate {
		cfg.Simulation.Enabled = true
	}
}
