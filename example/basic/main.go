package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/siherrmann/homegraph"
	"github.com/siherrmann/homegraph/core/automation"
	"github.com/siherrmann/homegraph/core/registry"
	"github.com/siherrmann/homegraph/helper"
	"github.com/siherrmann/homegraph/model"
)

func main() {
	logger := helper.NewLogger(os.Stdout, slog.LevelWarn)

	// Run from the repository root to find the test home
	snapshot, err := registry.LoadSnapshot("testdata/home.yaml")
	if err != nil {
		log.Fatalf("Failed to load snapshot: %v", err)
	}
	source, err := registry.NewStore(snapshot)
	if err != nil {
		log.Fatalf("Failed to create registry store: %v", err)
	}
	store, err := automation.NewFileStore("testdata/config", logger)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	g := homegraph.New(source, store, homegraph.WithLogger(logger))
	ctx := context.Background()

	fmt.Println("Searching for 'kitchen'...")
	for _, r := range g.Search(ctx, "kitchen", 5) {
		fmt.Printf("  %-30s %s\n", r.ID, r.Label)
	}

	fmt.Println("\nNeighborhood of light.kitchen (depth 2):")
	result := g.GetNeighborhood(ctx, "light.kitchen", 2, model.DefaultFilters())
	for _, e := range result.Edges {
		fmt.Printf("  %s -[%s]-> %s\n", e.From, e.RelationshipType, e.To)
	}

	// Only automation relationships
	filters := model.DefaultFilters()
	filters.RelationshipTypes = []model.RelationshipType{model.RelTriggers, model.RelConditionFor, model.RelControls}
	filtered := g.GetNeighborhood(ctx, "automation.good_night", 1, filters)
	fmt.Printf("\nautomation.good_night touches %d nodes (%d filtered)\n", len(filtered.Nodes), filtered.FilteredCount)

	stats := g.Statistics(ctx)
	fmt.Printf("\nGraph has %d nodes and %d template nodes\n", stats.TotalNodes, stats.TemplateNodes)
}
