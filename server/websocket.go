package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/siherrmann/homegraph/core/graph"
	"golang.org/x/time/rate"
)

// Websocket command types.
const (
	CommandGetNeighborhood         = "homegraph/get_neighborhood"
	CommandGetFilteredNeighborhood = "homegraph/get_filtered_neighborhood"
	CommandSearchEntities          = "homegraph/search_entities"
	CommandGetGraphStatistics      = "homegraph/get_graph_statistics"
)

// Envelope carries the id and type of every websocket command.
type Envelope struct {
	ID   int64  `json:"id" binding:"gt=0"`
	Type string `json:"type" binding:"required"`
}

// Reply answers one websocket command.
type Reply struct {
	ID      int64       `json:"id"`
	Type    string      `json:"type"`
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   *ReplyError `json:"error,omitempty"`
}

// ReplyError describes a failed command.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func resultReply(id int64, result interface{}) Reply {
	return Reply{ID: id, Type: "result", Success: true, Result: result}
}

func errorReply(id int64, code, message string) Reply {
	return Reply{ID: id, Type: "result", Success: false, Error: &ReplyError{Code: code, Message: message}}
}

// HandleWebsocket upgrades the connection and answers commands until
// the client disconnects. Commands are answered in order.
func (s *Server) HandleWebsocket(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("Failed to upgrade the websocket", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	sessionID := uuid.New().String()
	log := s.log.With(slog.String("session_id", sessionID))
	log.Info("Websocket client connected")

	limiter := rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.RateBurst)
	ctx := c.Request.Context()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Websocket read failed", slog.String("error", err.Error()))
			} else {
				log.Info("Websocket client disconnected")
			}
			return
		}

		reply := s.dispatch(ctx, limiter, data)
		if err := ws.WriteJSON(reply); err != nil {
			log.Warn("Failed to write websocket reply", slog.String("error", err.Error()))
			return
		}
	}
}

// dispatch decodes one command and runs it.
func (s *Server) dispatch(ctx context.Context, limiter *rate.Limiter, data []byte) Reply {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errorReply(0, CodeInvalidFormat, "message is not a JSON object")
	}
	if err := requestValidator().Struct(env); err != nil {
		return errorReply(env.ID, CodeInvalidFormat, err.Error())
	}
	if !limiter.Allow() {
		return errorReply(env.ID, CodeRateLimited, "too many commands")
	}

	switch env.Type {
	case CommandGetNeighborhood, CommandGetFilteredNeighborhood:
		var req NeighborhoodRequest
		if err := decodeCommand(data, &req); err != nil {
			return errorReply(env.ID, CodeInvalidFormat, err.Error())
		}
		filters, err := req.Filters()
		if err != nil {
			return errorReply(env.ID, CodeInvalidFormat, err.Error())
		}

		result, err := s.graph.QueryNeighborhood(ctx, req.Focus(), req.Depth(s.opts.DefaultDepth), filters)
		if errors.Is(err, graph.ErrFocusNotFound) {
			return errorReply(env.ID, CodeNotFound, "node "+result.FocusID+" not found")
		} else if err != nil {
			s.log.Error("Neighborhood command failed", slog.String("focus_id", result.FocusID), slog.String("error", err.Error()))
			return errorReply(env.ID, CodeInternalError, "neighborhood query failed")
		}
		return resultReply(env.ID, result)

	case CommandSearchEntities:
		var req SearchRequest
		if err := decodeCommand(data, &req); err != nil {
			return errorReply(env.ID, CodeInvalidFormat, err.Error())
		}
		if req.Limit == 0 {
			req.Limit = s.opts.SearchLimit
		}
		return resultReply(env.ID, s.graph.Search(ctx, req.Query, req.Limit))

	case CommandGetGraphStatistics:
		return resultReply(env.ID, s.graph.Statistics(ctx))
	}

	return errorReply(env.ID, CodeUnknownCommand, "unknown command "+env.Type)
}

func decodeCommand(data []byte, req interface{}) error {
	if err := json.Unmarshal(data, req); err != nil {
		return err
	}
	return requestValidator().Struct(req)
}
