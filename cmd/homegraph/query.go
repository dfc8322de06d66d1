package main

import (
	"errors"
	"fmt"

	"github.com/siherrmann/homegraph/core/graph"
	"github.com/siherrmann/homegraph/core/registry"
	"github.com/siherrmann/homegraph/database"
	"github.com/siherrmann/homegraph/helper"
	"github.com/siherrmann/homegraph/model"
	"github.com/spf13/cobra"
)

func runNeighborhood(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	g, _, err := buildGraph(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer g.Close()

	filters := model.Filters{
		ShowAreas:  showAreas,
		ShowZones:  showZones,
		ShowLabels: showLabels,
		Domains:    domains,
	}
	for _, r := range relations {
		rel := model.RelationshipType(r)
		if !rel.Valid() {
			return fmt.Errorf("unknown relationship type %q", r)
		}
		filters.RelationshipTypes = append(filters.RelationshipTypes, rel)
	}

	d := depth
	if d == 0 {
		d = cfg.Query.DefaultDepth
	}

	result, err := g.QueryNeighborhood(cmd.Context(), args[0], d, filters)
	if errors.Is(err, graph.ErrFocusNotFound) {
		return fmt.Errorf("node %s not found", result.FocusID)
	} else if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	g, _, err := buildGraph(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer g.Close()

	n := limit
	if n == 0 {
		n = cfg.Query.SearchLimit
	}
	return printJSON(cmd.OutOrStdout(), g.Search(cmd.Context(), args[0], n))
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	g, _, err := buildGraph(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer g.Close()

	return printJSON(cmd.OutOrStdout(), g.Statistics(cmd.Context()))
}

func runImport(cmd *cobra.Command, args []string) error {
	snapshot, err := registry.LoadSnapshot(args[0])
	if err != nil {
		return err
	}

	useDatabase = true
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	g, _, err := buildGraph(cfg, logger)
	if err != nil {
		return err
	}
	defer g.Close()

	err = g.ImportSnapshot(cmd.Context(), snapshot)
	if err != nil {
		return helper.NewError("import snapshot", err)
	}

	counts, err := g.StoredRecords(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Imported %d areas, %d devices, %d entities and %d states\n",
		counts[database.KindArea], counts[database.KindDevice], counts[database.KindEntity], counts[database.KindState])
	return nil
}

func runPurge(cmd *cobra.Command, args []string) error {
	kind := ""
	if len(args) == 1 {
		kind = args[0]
	}

	useDatabase = true
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	g, _, err := buildGraph(cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer g.Close()

	deleted, err := g.PurgeRecords(cmd.Context(), kind)
	if err != nil {
		return helper.NewError("purge records", err)
	}
	cmd.Printf("Deleted %d records\n", deleted)
	return nil
}
