package world

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/tilecollide/internal/assets"
	"github.com/Faultbox/tilecollide/internal/logger"
	"github.com/Faultbox/tilecollide/pkg/formats"
)

// Manager owns the current World and swaps in new ones on load or reload.
// Readers take the current World with Current and keep using it even if a
// reload publishes a newer one meanwhile.
type Manager struct {
	assets *assets.Manager
	opts   Options

	current atomic.Pointer[World]
	name    atomic.Pointer[string]
	reloads atomic.Int64

	log *zap.Logger
}

// NewManager creates a world manager reading maps through a.
func NewManager(a *assets.Manager, opts Options) *Manager {
	return &Manager{
		assets: a,
		opts:   opts,
		log:    logger.Named("world"),
	}
}

// Current returns the current world, or nil before the first Load.
func (m *Manager) Current() *World {
	return m.current.Load()
}

// Reloads returns how many times a world was published by Reload.
func (m *Manager) Reloads() int64 {
	return m.reloads.Load()
}

// Load builds a world from a .tmx map or a .gat grid and publishes it.
// On failure the current world is kept.
func (m *Manager) Load(name string) error {
	w, err := m.build(name)
	if err != nil {
		return fmt.Errorf("loading map %s: %w", name, err)
	}
	m.current.Store(w)
	m.name.Store(&name)
	return nil
}

func (m *Manager) build(name string) (*World, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".gat":
		gat, err := formats.LoadGAT(m.assets, name)
		if err != nil {
			return nil, err
		}
		return FromGAT(name, gat, m.opts)
	default:
		data, err := formats.LoadMap(m.assets, name, formats.MapOptions{
			CollisionLayers: m.opts.CollisionLayers,
			ZoneGroup:       m.opts.ZoneGroup,
		})
		if err != nil {
			return nil, err
		}
		return New(name, data, m.opts)
	}
}

// Reload rebuilds the current map from its files. Runtime tile changes made
// since the last load are discarded. Zone activation carries over by name.
func (m *Manager) Reload() error {
	name := m.name.Load()
	if name == nil {
		return fmt.Errorf("reload: no map loaded")
	}

	old := m.Current()
	w, err := m.build(*name)
	if err != nil {
		return fmt.Errorf("reloading map %s: %w", *name, err)
	}
	if old != nil {
		for _, z := range old.Zones() {
			if old.ZoneActive(z) {
				w.ActivateZone(z)
			}
		}
	}
	m.current.Store(w)
	m.reloads.Add(1)
	return nil
}

// Watch reloads the current map whenever a map or tileset file under roots
// changes, until ctx is done. A failed reload is logged and the previous
// world stays current.
func (m *Manager) Watch(ctx context.Context, roots []string, debounce time.Duration) error {
	watcher, err := assets.NewWatcher(roots, debounce, ".tmx", ".tsx", ".gat")
	if err != nil {
		return fmt.Errorf("watching assets: %w", err)
	}
	defer watcher.Close()

	m.log.Info("watching assets", zap.Strings("roots", roots))

	for {
		select {
		case <-ctx.Done():
			return nil
		case name, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			m.assets.Invalidate(name)
			if err := m.Reload(); err != nil {
				m.log.Error("reload failed, keeping previous map", zap.String("changed", name), zap.Error(err))
				continue
			}
			m.log.Info("map reloaded", zap.String("changed", name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("watch error", zap.Error(err))
		}
	}
}
