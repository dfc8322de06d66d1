package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/siherrmann/homegraph/core/graph"
	"github.com/siherrmann/homegraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockQuerier records the last neighborhood query.
type MockQuerier struct {
	lastFocus   string
	lastDepth   int
	lastFilters model.Filters
	lastLimit   int
}

func (m *MockQuerier) QueryNeighborhood(ctx context.Context, focusID string, maxDepth int, filters model.Filters) (model.NeighborhoodResult, error) {
	m.lastFocus = focusID
	m.lastDepth = maxDepth
	m.lastFilters = filters

	switch focusID {
	case "light.kitchen", "entity:light.kitchen":
	case "light.broken":
		return model.EmptyNeighborhood(focusID), fmt.Errorf("expand neighborhood: %w", context.Canceled)
	default:
		return model.EmptyNeighborhood(focusID), fmt.Errorf("lookup focus: %w", graph.ErrFocusNotFound)
	}
	return model.NeighborhoodResult{
		Nodes: []model.NodeView{
			{ID: "entity:light.kitchen", Kind: model.NodeKindEntity, Domain: "light", Label: "Kitchen Light"},
			{ID: "device:hub", Kind: model.NodeKindDevice, Label: "Hub"},
		},
		Edges: []model.EdgeView{
			{From: "entity:light.kitchen", To: "device:hub", RelationshipType: model.RelBelongsToDevice, Label: "belongs to device"},
		},
		FocusID: "entity:light.kitchen",
	}, nil
}

func (m *MockQuerier) Search(ctx context.Context, fragment string, limit int) []model.SearchResult {
	m.lastLimit = limit
	return []model.SearchResult{{ID: "entity:light.kitchen", Kind: model.NodeKindEntity, Label: "Kitchen Light", Domain: "light"}}
}

func (m *MockQuerier) Statistics(ctx context.Context) model.GraphStatistics {
	stats := model.NewGraphStatistics()
	stats.TotalNodes = 2
	stats.Nodes[model.NodeKindEntity] = 1
	stats.Nodes[model.NodeKindDevice] = 1
	return stats
}

func newTestServer(opts Options) (*Server, *MockQuerier) {
	gin.SetMode(gin.TestMode)
	querier := &MockQuerier{}
	return NewServer(querier, opts, slog.New(slog.NewTextHandler(io.Discard, nil))), querier
}

func get(t *testing.T, router *gin.Engine, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewServer(t *testing.T) {
	s, _ := newTestServer(Options{})
	assert.Equal(t, DefaultOptions(), s.opts, "Expected zero options to fall back to defaults")
}

func TestHTTPHandlers(t *testing.T) {
	s, querier := newTestServer(Options{})
	router := s.SetupRouter()

	t.Run("Health", func(t *testing.T) {
		w := get(t, router, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(requestIDHeader), "Expected a request id header")
	})

	t.Run("Metrics", func(t *testing.T) {
		w := get(t, router, "/metrics")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Neighborhood with defaults", func(t *testing.T) {
		w := get(t, router, "/api/neighborhood?node_id=light.kitchen")
		require.Equal(t, http.StatusOK, w.Code)

		var result model.NeighborhoodResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, "entity:light.kitchen", result.FocusID)
		assert.Len(t, result.Nodes, 2)
		assert.Equal(t, model.DefaultDepth, querier.lastDepth)
		assert.Equal(t, model.DefaultFilters(), querier.lastFilters)
	})

	t.Run("Neighborhood with filters", func(t *testing.T) {
		w := get(t, router, "/api/neighborhood?entity_id=light.kitchen&max_depth=9&show_areas=false&domain=light&domain=switch&relationship=controls")
		require.Equal(t, http.StatusOK, w.Code)

		assert.Equal(t, "light.kitchen", querier.lastFocus)
		assert.Equal(t, 9, querier.lastDepth, "Expected depth to be passed through for clamping")
		assert.False(t, querier.lastFilters.ShowAreas)
		assert.True(t, querier.lastFilters.ShowZones)
		assert.Equal(t, []string{"light", "switch"}, querier.lastFilters.Domains)
		assert.Equal(t, []model.RelationshipType{model.RelControls}, querier.lastFilters.RelationshipTypes)
	})

	t.Run("Neighborhood without node id", func(t *testing.T) {
		w := get(t, router, "/api/neighborhood")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), CodeInvalidFormat)
	})

	t.Run("Neighborhood with unknown relationship", func(t *testing.T) {
		w := get(t, router, "/api/neighborhood?node_id=light.kitchen&relationship=owns")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Neighborhood of unknown node", func(t *testing.T) {
		w := get(t, router, "/api/neighborhood?node_id=light.missing")
		assert.Equal(t, http.StatusNotFound, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, CodeNotFound, resp.Code)
	})

	t.Run("Failed neighborhood query is an internal error", func(t *testing.T) {
		w := get(t, router, "/api/neighborhood?node_id=light.broken")
		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, CodeInternalError, resp.Code)
	})

	t.Run("Search uses the default limit", func(t *testing.T) {
		w := get(t, router, "/api/search?query=kitchen")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, model.DefaultSearchLimit, querier.lastLimit)

		var results []model.SearchResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
		assert.Len(t, results, 1)
	})

	t.Run("Search without query", func(t *testing.T) {
		w := get(t, router, "/api/search")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Search with too large limit", func(t *testing.T) {
		w := get(t, router, "/api/search?query=kitchen&limit=1000")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Statistics", func(t *testing.T) {
		w := get(t, router, "/api/statistics")
		require.Equal(t, http.StatusOK, w.Code)

		var stats model.GraphStatistics
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Equal(t, 2, stats.TotalNodes)
	})
}

func dialWebsocket(t *testing.T, s *Server) *websocket.Conn {
	ts := httptest.NewServer(s.SetupRouter())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "Expected websocket dial to succeed")
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, message string) Reply {
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(message)))

	var reply Reply
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestWebsocket(t *testing.T) {
	s, querier := newTestServer(Options{})
	conn := dialWebsocket(t, s)

	t.Run("Get neighborhood", func(t *testing.T) {
		reply := roundTrip(t, conn, `{"id": 1, "type": "homegraph/get_neighborhood", "node_id": "light.kitchen"}`)
		assert.Equal(t, int64(1), reply.ID)
		assert.Equal(t, "result", reply.Type)
		assert.True(t, reply.Success)
		assert.Nil(t, reply.Error)

		result, ok := reply.Result.(map[string]interface{})
		require.True(t, ok, "Expected the result to be an object")
		assert.Equal(t, "entity:light.kitchen", result["focus_id"])
		assert.Equal(t, model.DefaultDepth, querier.lastDepth)
	})

	t.Run("Get neighborhood by entity id", func(t *testing.T) {
		reply := roundTrip(t, conn, `{"id": 2, "type": "homegraph/get_neighborhood", "entity_id": "light.kitchen", "max_depth": 3}`)
		assert.True(t, reply.Success)
		assert.Equal(t, "light.kitchen", querier.lastFocus)
		assert.Equal(t, 3, querier.lastDepth)
	})

	t.Run("Get filtered neighborhood", func(t *testing.T) {
		reply := roundTrip(t, conn, `{"id": 3, "type": "homegraph/get_filtered_neighborhood", "node_id": "light.kitchen", "show_labels": false, "domain_filter": ["light"], "relationship_filter": ["belongs_to_device"]}`)
		assert.True(t, reply.Success)
		assert.False(t, querier.lastFilters.ShowLabels)
		assert.Equal(t, []string{"light"}, querier.lastFilters.Domains)
		assert.Equal(t, []model.RelationshipType{model.RelBelongsToDevice}, querier.lastFilters.RelationshipTypes)
	})

	t.Run("Unknown node", func(t *testing.T) {
		reply := roundTrip(t, conn, `{"id": 4, "type": "homegraph/get_neighborhood", "node_id": "light.missing"}`)
		assert.False(t, reply.Success)
		require.NotNil(t, reply.Error)
		assert.Equal(t, CodeNotFound, reply.Error.Code)
	})

	t.Run("Failed query", func(t *testing.T) {
		reply := roundTrip(t, conn, `{"id": 40, "type": "homegraph/get_neighborhood", "node_id": "light.broken"}`)
		assert.False(t, reply.Success)
		require.NotNil(t, reply.Error)
		assert.Equal(t, CodeInternalError, reply.Error.Code)
	})

	t.Run("Missing node id", func(t *testing.T) {
		reply := roundTrip(t, conn, `{"id": 5, "type": "homegraph/get_neighborhood"}`)
		require.NotNil(t, reply.Error)
		assert.Equal(t, CodeInvalidFormat, reply.Error.Code)
	})

	t.Run("Search entities", func(t *testing.T) {
		reply := roundTrip(t, conn, `{"id": 6, "type": "homegraph/search_entities", "query": "kitchen", "limit": 5}`)
		assert.True(t, reply.Success)
		assert.Equal(t, 5, querier.lastLimit)

		results, ok := reply.Result.([]interface{})
		require.True(t, ok, "Expected the result to be a list")
		assert.Len(t, results, 1)
	})

	t.Run("Graph statistics", func(t *testing.T) {
		reply := roundTrip(t, conn, `{"id": 7, "type": "homegraph/get_graph_statistics"}`)
		assert.True(t, reply.Success)
	})

	t.Run("Unknown command", func(t *testing.T) {
		reply := roundTrip(t, conn, `{"id": 8, "type": "homegraph/unknown"}`)
		require.NotNil(t, reply.Error)
		assert.Equal(t, CodeUnknownCommand, reply.Error.Code)
	})

	t.Run("Invalid message", func(t *testing.T) {
		reply := roundTrip(t, conn, `not json`)
		require.NotNil(t, reply.Error)
		assert.Equal(t, CodeInvalidFormat, reply.Error.Code)
	})

	t.Run("Missing id", func(t *testing.T) {
		reply := roundTrip(t, conn, `{"type": "homegraph/get_graph_statistics"}`)
		require.NotNil(t, reply.Error)
		assert.Equal(t, CodeInvalidFormat, reply.Error.Code)
	})
}

func TestWebsocketRateLimit(t *testing.T) {
	s, _ := newTestServer(Options{RateLimit: 0.001, RateBurst: 1})
	conn := dialWebsocket(t, s)

	reply := roundTrip(t, conn, `{"id": 1, "type": "homegraph/get_graph_statistics"}`)
	assert.True(t, reply.Success, "Expected the first command to pass the burst")

	reply = roundTrip(t, conn, `{"id": 2, "type": "homegraph/get_graph_statistics"}`)
	require.NotNil(t, reply.Error)
	assert.Equal(t, CodeRateLimited, reply.Error.Code)
}
