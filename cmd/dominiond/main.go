// Command dominiond runs the Dominion Rising nation and army engine.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/dominion-engine/internal/api"
	"github.com/talgya/dominion-engine/internal/armystation"
	"github.com/talgya/dominion-engine/internal/codec"
	"github.com/talgya/dominion-engine/internal/config"
	"github.com/talgya/dominion-engine/internal/nation"
	"github.com/talgya/dominion-engine/internal/storage"
	"github.com/talgya/dominion-engine/internal/tuning"
	"github.com/talgya/dominion-engine/internal/unit"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		slog.Error("failed to parse config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("Dominion Rising engine starting")

	tun := tuning.Default()
	if cfg.TuningPath != "" {
		tun, err = tuning.Load(cfg.TuningPath)
		if err != nil {
			slog.Error("failed to load tuning", "path", cfg.TuningPath, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("tuning loaded",
		"command_range", tun.CommandRange,
		"cleanup_every_sec", tun.CleanupEverySec,
		"autosave_every_sec", tun.AutosaveEverySec,
	)

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755)
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Registries ────────────────────────────────────────────────────
	now := func() int64 { return time.Now().UnixMilli() }

	nations := nation.NewRegistry()
	units := unit.NewRegistry(nations, now)
	station := armystation.New(nations, units)

	if err := loadState(db, nations, units); err != nil {
		slog.Error("failed to load persisted state", "error", err)
		os.Exit(1)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	server := &api.Server{
		Nations:  nations,
		Units:    units,
		Station:  station,
		DB:       db,
		Tuning:   tun,
		Port:     cfg.APIPort,
		AdminKey: cfg.AdminKey,
		Now:      now,
	}
	server.Start()

	// ── Background sweeps ─────────────────────────────────────────────
	cleanupTicker := time.NewTicker(time.Duration(tun.CleanupEverySec) * time.Second)
	defer cleanupTicker.Stop()
	saveTicker := time.NewTicker(time.Duration(tun.AutosaveEverySec) * time.Second)
	defer saveTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	save := func() {
		nationsBlob := codec.EncodeNations(nations.All(), nations.PlayerMappings())
		unitsBlob := codec.EncodeUnits(units.Snapshot())
		if err := db.SaveState(nationsBlob, unitsBlob, now()); err != nil {
			slog.Error("autosave failed", "error", err)
		}
	}

	for {
		select {
		case <-cleanupTicker.C:
			if removed := units.CleanupDead(); removed > 0 {
				slog.Info("dead unit sweep", "removed", removed)
			}
		case <-saveTicker.C:
			save()
		case sig := <-sigCh:
			slog.Info("shutting down", "signal", sig.String())
			save()
			return
		}
	}
}

// loadState decodes both persisted blobs into the registries. An empty
// database starts an empty world.
func loadState(db *storage.DB, nations *nation.Registry, units *unit.Registry) error {
	nationsBlob, err := db.LoadBlob(storage.KindNations)
	if err != nil {
		return err
	}
	loadedNations, mappings := codec.DecodeNations(nationsBlob)
	nations.Load(loadedNations, mappings)

	unitsBlob, err := db.LoadBlob(storage.KindUnits)
	if err != nil {
		return err
	}
	loadedUnits := codec.DecodeUnits(unitsBlob)
	units.Load(loadedUnits)

	slog.Info("state loaded", "nations", len(loadedNations), "players", len(mappings), "units", len(loadedUnits))
	return nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
