// Package config handles collision service configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Faultbox/tilecollide/pkg/formats"
)

// Config holds all settings.
type Config struct {
	Collision  CollisionConfig  `yaml:"collision"`
	Assets     AssetsConfig     `yaml:"assets"`
	Simulation SimulationConfig `yaml:"simulation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CollisionConfig holds tile grid and index settings.
type CollisionConfig struct {
	TileWidth          int  `yaml:"tile_width"`
	TileHeight         int  `yaml:"tile_height"`
	BucketTiles        int  `yaml:"bucket_tiles"` // 0 = choose from shape density
	TargetPerBucket    int  `yaml:"target_per_bucket"`
	OutOfBoundsBlocked bool `yaml:"out_of_bounds_blocked"`
}

// AssetsConfig holds asset locations.
type AssetsConfig struct {
	Roots           []string      `yaml:"roots"` // later roots override earlier ones
	Map             string        `yaml:"map"`
	CollisionLayers []string      `yaml:"collision_layers"`
	ZoneGroup       string        `yaml:"zone_group"`
	Watch           bool          `yaml:"watch"`
	WatchDebounce   time.Duration `yaml:"watch_debounce"`
}

// SimulationConfig holds settings for the demo walker simulation.
type SimulationConfig struct {
	Enabled      bool    `yaml:"enabled"`
	TickRate     int     `yaml:"tick_rate"`
	Entities     int     `yaml:"entities"`
	Workers      int     `yaml:"workers"`
	EntityWidth  float64 `yaml:"entity_width"`
	EntityHeight float64 `yaml:"entity_height"`
	Speed        float64 `yaml:"speed"` // pixels per second
	Seed         int64   `yaml:"seed"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	Format  string `yaml:"format"` // console or json, for the log file
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Collision: CollisionConfig{
			TileWidth:          16,
			TileHeight:         16,
			BucketTiles:        0,
			TargetPerBucket:    8,
			OutOfBoundsBlocked: true,
		},
		Assets: AssetsConfig{
			Roots:           []string{"assets"},
			Map:             "maps/house.tmx",
			CollisionLayers: append([]string(nil), formats.DefaultCollisionLayers...),
			ZoneGroup:       "fog",
			Watch:           false,
			WatchDebounce:   200 * time.Millisecond,
		},
		Simulation: SimulationConfig{
			Enabled:      false,
			TickRate:     60,
			Entities:     32,
			Workers:      4,
			EntityWidth:  12,
			EntityHeight: 12,
			Speed:        90,
			Seed:         1,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
			Format:  "console",
		},
	}
}

// Validate reports settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Collision.TileWidth <= 0 || c.Collision.TileHeight <= 0 {
		errs = append(errs, fmt.Errorf("collision: tile size must be positive, got %dx%d",
			c.Collision.TileWidth, c.Collision.TileHeight))
	}
	if c.Collision.BucketTiles < 0 {
		errs = append(errs, fmt.Errorf("collision: bucket_tiles must not be negative"))
	}
	if len(c.Assets.Roots) == 0 {
		errs = append(errs, fmt.Errorf("assets: at least one root is required"))
	}
	if c.Assets.Map == "" {
		errs = append(errs, fmt.Errorf("assets: map is required"))
	}
	if c.Simulation.Enabled {
		if c.Simulation.TickRate <= 0 {
			errs = append(errs, fmt.Errorf("simulation: tick_rate must be positive"))
		}
		if c.Simulation.EntityWidth <= 0 || c.Simulation.EntityHeight <= 0 {
			errs = append(errs, fmt.Errorf("simulation: entity size must be positive"))
		}
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging: unknown format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}
