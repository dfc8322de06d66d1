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
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	logger := helper.NewLogger(os.Stdout, slog.LevelInfo)
	store, err := automation.NewFileStore("testdata/config", logger)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The database starts empty
	g, err := homegraph.NewFromDatabase(dbConfig, store, homegraph.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create homegraph: %v", err)
	}
	defer g.Close()

	ctx := context.Background()
	snapshot, err := registry.LoadSnapshot("testdata/home.yaml")
	if err != nil {
		log.Fatalf("Failed to load snapshot: %v", err)
	}
	if err := g.ImportSnapshot(ctx, snapshot); err != nil {
		log.Fatalf("Failed to import snapshot: %v", err)
	}

	counts, err := g.Records.CountRecords(ctx)
	if err != nil {
		log.Fatalf("Failed to count records: %v", err)
	}
	fmt.Println("Stored registry records:")
	for kind, n := range counts {
		fmt.Printf("  %-8s %d\n", kind, n)
	}

	// Name search in postgres, then the neighborhood of the best match
	matches, err := g.Records.SelectRecordsBySearch(ctx, "front_door", 3)
	if err != nil {
		log.Fatalf("Failed to search records: %v", err)
	}
	if len(matches) == 0 {
		log.Fatal("No record matches front_door")
	}
	fmt.Printf("\nBest match: %s %s (%s)\n", matches[0].Kind, matches[0].RecordID, matches[0].Name)

	filters := model.DefaultFilters()
	filters.ShowAreas = false
	result := g.GetNeighborhood(ctx, matches[0].RecordID, 3, filters)
	fmt.Printf("\nNeighborhood of %s without areas:\n", result.FocusID)
	for _, e := range result.Edges {
		fmt.Printf("  %s -[%s]-> %s\n", e.From, e.RelationshipType, e.To)
	}
}
