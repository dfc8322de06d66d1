package homegraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/siherrmann/homegraph/core/automation"
	"github.com/siherrmann/homegraph/core/detect"
	"github.com/siherrmann/homegraph/core/graph"
	"github.com/siherrmann/homegraph/core/registry"
	"github.com/siherrmann/homegraph/core/template"
	"github.com/siherrmann/homegraph/database"
	"github.com/siherrmann/homegraph/helper"
	"github.com/siherrmann/homegraph/model"
	loadSql "github.com/siherrmann/homegraph/sql"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "homegraph_queries_total",
		Help: "Neighborhood queries by outcome.",
	}, []string{"outcome"})
	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "homegraph_query_duration_seconds",
		Help:    "Duration of neighborhood queries.",
		Buckets: prometheus.DefBuckets,
	})
	neighborhoodNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "homegraph_neighborhood_nodes",
		Help:    "Number of nodes returned per neighborhood query.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

// Query outcomes reported by homegraph_queries_total.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
	OutcomePanic    = "panic"
)

// ErrQueryPanicked is returned when a neighborhood query panicked.
var ErrQueryPanicked = errors.New("neighborhood query panicked")

// HomeGraph answers neighborhood, search and statistics queries over the
// registries and the automation configuration.
type HomeGraph struct {
	Registry    *registry.Adapter
	Automations automation.Store
	resolver    *template.Resolver
	// Custom detectors replace the default set when set
	detectors []detect.Detector
	// Optional postgres registry backend
	DB      *helper.Database
	Records *database.RegistryDBHandler
	// Logging
	log *slog.Logger
}

// Option configures a HomeGraph.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	compiler  template.Compiler
	detectors []detect.Detector
}

// WithLogger sets the logger. The default is a pretty handler on stdout.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCompiler sets the template compiler tried before the regex fallback.
func WithCompiler(compiler template.Compiler) Option {
	return func(o *options) {
		o.compiler = compiler
	}
}

// WithDetectors replaces the default detectors.
func WithDetectors(detectors ...detect.Detector) Option {
	return func(o *options) {
		o.detectors = detectors
	}
}

// New creates a HomeGraph over a registry source and an automation store.
// A nil store means no configuration is available.
func New(source registry.Source, store automation.Store, opts ...Option) *HomeGraph {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = helper.NewLogger(os.Stdout, slog.LevelInfo)
	}

	return &HomeGraph{
		Registry:    registry.NewAdapter(source, o.logger),
		Automations: store,
		resolver:    template.NewResolver(o.compiler, o.logger),
		detectors:   o.detectors,
		log:         o.logger,
	}
}

// Engine returns an engine over the registry view served right now. Swaps
// after the call do not reach it, so one query sees one registry.
// Definitions are keyed by the entity ids that view assigns to their
// unique ids.
func (g *HomeGraph) Engine() *graph.Engine {
	pinned := g.Registry.Pin()
	detectors := g.detectors
	if detectors == nil {
		var store automation.Store
		if g.Automations != nil {
			store = automation.Resolve(g.Automations, pinned)
		}
		detectors = detect.Default(pinned, store, g.resolver, g.log)
	}
	return graph.NewEngine(pinned, detectors, g.log)
}

// NewFromDatabase creates a HomeGraph whose registry is read from postgres.
func NewFromDatabase(config *helper.DatabaseConfiguration, store automation.Store, opts ...Option) (*HomeGraph, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = helper.NewLogger(os.Stdout, slog.LevelInfo)
	}

	db := helper.NewDatabase("homegraph", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	records, err := database.NewRegistryDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create registry handler", err)
	}

	snapshot, err := records.SelectSnapshot(context.Background())
	if err != nil {
		return nil, helper.NewError("select snapshot", err)
	}
	source, err := registry.NewStore(snapshot)
	if err != nil {
		return nil, helper.NewError("create registry store", err)
	}

	g := New(source, store, append(opts, WithLogger(logger))...)
	g.DB = db
	g.Records = records
	return g, nil
}

// Close closes the database connection
func (g *HomeGraph) Close() error {
	if g.DB != nil && g.DB.Instance != nil {
		return g.DB.Instance.Close()
	}
	return nil
}

// ImportSnapshot stores snapshot in the database, if one is attached, and
// swaps it in for the following queries.
func (g *HomeGraph) ImportSnapshot(ctx context.Context, snapshot *registry.Snapshot) error {
	source, err := registry.NewStore(snapshot)
	if err != nil {
		return helper.NewError("create registry store", err)
	}

	if g.Records != nil {
		inserted, err := g.Records.ImportSnapshot(ctx, snapshot)
		if err != nil {
			return helper.NewError("import snapshot", err)
		}
		g.log.Info("Stored registry snapshot", slog.Int("records", inserted))
	}

	g.Registry.Swap(source)
	return nil
}

// ReloadRegistry re-reads the registry from the database.
func (g *HomeGraph) ReloadRegistry(ctx context.Context) error {
	if g.Records == nil {
		return helper.NewError("reload registry", errors.New("no database attached"))
	}

	snapshot, err := g.Records.SelectSnapshot(ctx)
	if err != nil {
		return helper.NewError("select snapshot", err)
	}
	source, err := registry.NewStore(snapshot)
	if err != nil {
		return helper.NewError("create registry store", err)
	}

	g.Registry.Swap(source)
	return nil
}

// StoredRecords returns the number of stored registry records per kind.
func (g *HomeGraph) StoredRecords(ctx context.Context) (map[string]int, error) {
	if g.Records == nil {
		return nil, helper.NewError("count records", errors.New("no database attached"))
	}
	counts, err := g.Records.CountRecords(ctx)
	if err != nil {
		return nil, helper.NewError("count records", err)
	}
	return counts, nil
}

// PurgeRecords deletes the stored records of kind, all of them if kind is
// empty, and reloads the registry from what is left.
func (g *HomeGraph) PurgeRecords(ctx context.Context, kind string) (int, error) {
	if g.Records == nil {
		return 0, helper.NewError("purge records", errors.New("no database attached"))
	}
	switch kind {
	case "", database.KindArea, database.KindDevice, database.KindEntity, database.KindZone,
		database.KindLabel, database.KindGroup, database.KindState:
	default:
		return 0, helper.NewError("purge records", fmt.Errorf("unknown record kind %q", kind))
	}

	deleted, err := g.Records.DeleteRecords(ctx, kind)
	if err != nil {
		return 0, helper.NewError("delete records", err)
	}
	g.log.Info("Purged registry records", slog.String("kind", kind), slog.Int("deleted", deleted))

	err = g.ReloadRegistry(ctx)
	if err != nil {
		return deleted, err
	}
	return deleted, nil
}

// GetNeighborhood returns the nodes and edges within maxDepth hops of
// focusID. Bare entity ids are accepted and maxDepth is clamped to
// [model.MinDepth, model.MaxDepth]. Every failure yields an empty result.
func (g *HomeGraph) GetNeighborhood(ctx context.Context, focusID string, maxDepth int, filters model.Filters) model.NeighborhoodResult {
	result, _ := g.QueryNeighborhood(ctx, focusID, maxDepth, filters)
	return result
}

// QueryNeighborhood is GetNeighborhood with the failure reported. The error
// wraps graph.ErrFocusNotFound when the focus does not resolve and
// ErrQueryPanicked when a detector or the engine panicked. The result is
// empty whenever the error is not nil.
func (g *HomeGraph) QueryNeighborhood(ctx context.Context, focusID string, maxDepth int, filters model.Filters) (result model.NeighborhoodResult, err error) {
	start := time.Now()
	focusID = model.NormalizeNodeID(focusID)
	maxDepth = model.ClampDepth(maxDepth)

	defer func() {
		if p := recover(); p != nil {
			g.log.Error("Neighborhood query panicked",
				slog.String("focus_id", focusID),
				slog.String("panic", fmt.Sprint(p)),
			)
			queriesTotal.WithLabelValues(OutcomePanic).Inc()
			result = model.EmptyNeighborhood(focusID)
			err = helper.NewError("neighborhood", fmt.Errorf("%w: %v", ErrQueryPanicked, p))
		}
		queryDuration.Observe(time.Since(start).Seconds())
	}()

	n, err := g.Engine().Neighborhood(ctx, focusID, maxDepth, filters)
	if err != nil {
		if errors.Is(err, graph.ErrFocusNotFound) {
			g.log.Debug("Focus node not found", slog.String("focus_id", focusID))
			queriesTotal.WithLabelValues(OutcomeNotFound).Inc()
		} else {
			g.log.Error("Neighborhood query failed",
				slog.String("focus_id", focusID),
				slog.String("error", err.Error()),
			)
			queriesTotal.WithLabelValues(OutcomeError).Inc()
		}
		return model.EmptyNeighborhood(focusID), err
	}

	result = model.NeighborhoodResult{
		Nodes:         make([]model.NodeView, 0, len(n.Nodes)),
		Edges:         make([]model.EdgeView, 0, len(n.Edges)),
		FocusID:       n.Focus.ID,
		FilteredCount: n.Filtered,
	}
	for _, node := range n.Nodes {
		result.Nodes = append(result.Nodes, model.NewNodeView(node))
	}
	for _, edge := range n.Edges {
		result.Edges = append(result.Edges, model.NewEdgeView(edge))
	}

	queriesTotal.WithLabelValues(OutcomeOK).Inc()
	neighborhoodNodes.Observe(float64(len(result.Nodes)))
	g.log.Debug("Neighborhood query",
		slog.String("focus_id", focusID),
		slog.Int("depth", maxDepth),
		slog.Int("nodes", len(result.Nodes)),
		slog.Int("edges", len(result.Edges)),
	)

	return result, nil
}

// Search returns nodes whose id or name contains fragment, case-insensitive.
// A non-positive limit uses model.DefaultSearchLimit. With a database
// attached the stored records are searched first and the in-memory index
// fills up the rest, which covers entities that only have a state.
func (g *HomeGraph) Search(ctx context.Context, fragment string, limit int) []model.SearchResult {
	if limit <= 0 {
		limit = model.DefaultSearchLimit
	}

	var nodes []model.Node
	if g.Records != nil && strings.TrimSpace(fragment) != "" {
		stored, err := g.searchRecords(ctx, strings.TrimSpace(fragment), limit)
		if err != nil {
			g.log.Warn("Record search failed, using registry index", slog.String("error", err.Error()))
		}
		nodes = stored
	}
	if len(nodes) < limit {
		seen := map[string]bool{}
		for _, n := range nodes {
			seen[n.ID] = true
		}
		for _, n := range g.Registry.Search(fragment, limit) {
			if len(nodes) >= limit {
				break
			}
			if !seen[n.ID] {
				nodes = append(nodes, n)
			}
		}
	}

	results := make([]model.SearchResult, 0, len(nodes))
	for _, n := range nodes {
		view := model.NewNodeView(n)
		results = append(results, model.SearchResult{
			ID:     n.ID,
			Kind:   n.Kind,
			Label:  view.Label,
			Domain: n.Domain,
			Icon:   n.Icon,
			State:  n.State,
		})
	}
	return results
}

// searchRecords resolves the stored records matching fragment against the
// registry served right now. Records the registry does not know are skipped.
func (g *HomeGraph) searchRecords(ctx context.Context, fragment string, limit int) ([]model.Node, error) {
	matches, err := g.Records.SelectRecordsBySearch(ctx, likeEscaper.Replace(fragment), limit)
	if err != nil {
		return nil, helper.NewError("search records", err)
	}

	pinned := g.Registry.Pin()
	nodes := make([]model.Node, 0, len(matches))
	for _, m := range matches {
		id, ok := recordNodeID(m)
		if !ok {
			continue
		}
		n, err := pinned.Lookup(id)
		if err != nil {
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// likeEscaper keeps ILIKE wildcards in a fragment literal.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func recordNodeID(m *database.RecordMatch) (string, bool) {
	switch m.Kind {
	case database.KindEntity:
		return model.EntityNodeID(m.RecordID), true
	case database.KindDevice:
		return model.DeviceNodeID(m.RecordID), true
	case database.KindArea:
		return model.AreaNodeID(m.RecordID), true
	case database.KindLabel:
		return model.LabelNodeID(m.RecordID), true
	case database.KindZone:
		return model.ZoneNodeID(m.RecordID), true
	case database.KindGroup:
		return model.GroupNodeID(m.RecordID), true
	}
	return "", false
}

// Statistics counts nodes per kind, entities per domain and definitions
// per domain.
func (g *HomeGraph) Statistics(ctx context.Context) model.GraphStatistics {
	stats := model.NewGraphStatistics()

	kinds, domains := g.Registry.Counts()
	for kind, count := range kinds {
		stats.Nodes[kind] = count
		stats.TotalNodes += count
	}
	for domain, count := range domains {
		stats.Domains[domain] = count
	}

	if g.Automations != nil {
		for _, def := range g.Automations.Definitions() {
			stats.Definitions[def.Domain]++
			if isTemplateDomain(def.Domain) {
				stats.TemplateNodes++
			}
		}
	}

	return stats
}

func isTemplateDomain(domain string) bool {
	switch domain {
	case "automation", "script", "scene":
		return false
	}
	return true
}
