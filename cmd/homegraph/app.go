package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/siherrmann/homegraph"
	"github.com/siherrmann/homegraph/config"
	"github.com/siherrmann/homegraph/core/automation"
	"github.com/siherrmann/homegraph/core/registry"
	"github.com/siherrmann/homegraph/helper"
)

// loadConfig merges defaults, the config file, the environment and flags.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if snapshotPath != "" {
		cfg.Registry.Snapshot = snapshotPath
	}
	if configDir != "" {
		cfg.Automation.Dir = configDir
	}
	if useDatabase {
		cfg.Registry.Database = true
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	return cfg, cfg.Validate()
}

// newLogger writes to stderr so query output on stdout stays parseable.
func newLogger(cfg *config.Config) *slog.Logger {
	return helper.NewLogger(os.Stderr, helper.ParseLevel(cfg.Log.Level))
}

// buildGraph creates the graph and, when a configuration directory is
// set, the file store feeding it.
func buildGraph(cfg *config.Config, logger *slog.Logger) (*homegraph.HomeGraph, *automation.FileStore, error) {
	var fileStore *automation.FileStore
	var store automation.Store
	if cfg.Automation.Dir != "" {
		var err error
		fileStore, err = automation.NewFileStore(cfg.Automation.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		store = fileStore
	}

	if cfg.Registry.Database {
		dbConfig, err := helper.NewDatabaseConfiguration()
		if err != nil {
			return nil, nil, err
		}
		g, err := homegraph.NewFromDatabase(dbConfig, store, homegraph.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return g, fileStore, nil
	}

	snapshot, err := registry.LoadSnapshot(cfg.Registry.Snapshot)
	if err != nil {
		return nil, nil, err
	}
	source, err := registry.NewStore(snapshot)
	if err != nil {
		return nil, nil, err
	}

	return homegraph.New(source, store, homegraph.WithLogger(logger)), fileStore, nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
