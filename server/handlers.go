package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/siherrmann/homegraph/core/graph"
)

// HandleHealth reports liveness.
func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleNeighborhood serves GET /api/neighborhood.
func (s *Server) HandleNeighborhood(c *gin.Context) {
	var req NeighborhoodRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidFormat})
		return
	}

	filters, err := req.Filters()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidFormat})
		return
	}

	result, err := s.graph.QueryNeighborhood(c.Request.Context(), req.Focus(), req.Depth(s.opts.DefaultDepth), filters)
	if errors.Is(err, graph.ErrFocusNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "node " + result.FocusID + " not found", Code: CodeNotFound})
		return
	} else if err != nil {
		s.log.Error("Neighborhood request failed", slog.String("focus_id", result.FocusID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "neighborhood query failed", Code: CodeInternalError})
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleSearch serves GET /api/search.
func (s *Server) HandleSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidFormat})
		return
	}
	if req.Limit == 0 {
		req.Limit = s.opts.SearchLimit
	}

	c.JSON(http.StatusOK, s.graph.Search(c.Request.Context(), req.Query, req.Limit))
}

// HandleStatistics serves GET /api/statistics.
func (s *Server) HandleStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, s.graph.Statistics(c.Request.Context()))
}
