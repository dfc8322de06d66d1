package main

import (
	"github.com/spf13/cobra"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath   string
	snapshotPath string
	configDir    string
	useDatabase  bool
	logLevel     string

	depth      int
	showAreas  bool
	showZones  bool
	showLabels bool
	domains    []string
	relations  []string
	limit      int

	rootCmd = &cobra.Command{
		Use:          "homegraph",
		Short:        "Explore the relationship graph of a Home Assistant installation",
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve neighborhood queries over HTTP and websocket",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	neighborhoodCmd = &cobra.Command{
		Use:   "neighborhood [node_id]",
		Short: "Print the neighborhood of a node as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runNeighborhood,
	}

	searchCmd = &cobra.Command{
		Use:   "search [fragment]",
		Short: "Search nodes by id or name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print graph statistics",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}

	importCmd = &cobra.Command{
		Use:   "import [snapshot]",
		Short: "Import a registry snapshot into postgres",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}

	purgeCmd = &cobra.Command{
		Use:   "purge [kind]",
		Short: "Delete stored registry records of a kind, all of them without a kind",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPurge,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&snapshotPath, "snapshot", "", "registry snapshot file (overrides the configuration)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Home Assistant configuration directory (overrides the configuration)")
	rootCmd.PersistentFlags().BoolVar(&useDatabase, "database", false, "read the registry from postgres")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	neighborhoodCmd.Flags().IntVarP(&depth, "depth", "d", 0, "traversal depth (default from the configuration)")
	neighborhoodCmd.Flags().BoolVar(&showAreas, "areas", true, "include areas")
	neighborhoodCmd.Flags().BoolVar(&showZones, "zones", true, "include zones")
	neighborhoodCmd.Flags().BoolVar(&showLabels, "labels", true, "include labels")
	neighborhoodCmd.Flags().StringSliceVar(&domains, "domain", nil, "only include entities of these domains")
	neighborhoodCmd.Flags().StringSliceVar(&relations, "relationship", nil, "only follow these relationship types")

	searchCmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (default from the configuration)")

	rootCmd.AddCommand(serveCmd, neighborhoodCmd, searchCmd, statsCmd, importCmd, purgeCmd, versionCmd)
}
