package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	errx "github.com/brscn2/aesthetiq-sub001/internal/core/error"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/model"
	"github.com/brscn2/aesthetiq-sub001/internal/stylist/stream"
)

// chatRequest is the wire shape shared by the chat and recommend
// endpoints. A missing sessionId starts a fresh session.
type chatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId,omitempty"`
}

func (c *chatRequest) validate() error {
	if strings.TrimSpace(c.Message) == "" {
		return errors.New("message is required")
	}
	return nil
}

func (c *chatRequest) ensureSession() {
	if strings.TrimSpace(c.SessionID) == "" {
		c.SessionID = uuid.NewString()
	}
}

func (c *chatRequest) turnInput() model.TurnInput {
	return model.TurnInput{
		SessionID: c.SessionID,
		UserID:    c.UserID,
		Message:   c.Message,
	}
}

type recommendResponse struct {
	ItemIDs    []string       `json:"itemIds"`
	Message    string         `json:"message"`
	SessionID  string         `json:"sessionId"`
	Iterations int            `json:"iterations"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func decodeChatRequest(r *http.Request) (*chatRequest, error) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid request body")
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	req.ensureSession()
	return &req, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handleChatStream runs one conversation turn and streams its events as
// newline-delimited JSON. The stream always opens with a metadata frame
// and closes with done or error; the runner owns that framing, the
// handler only drains.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	em := stream.NewChannelEmitter(s.streamBuffer)
	go func() {
		defer em.Close()
		if _, err := s.conversation.Converse(ctx, req.turnInput(), em); err != nil {
			s.log.Debug().Err(err).Str("session_id", req.SessionID).Msg("turn ended with error")
		}
	}()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-em.Events():
			if !open {
				return
			}
			if err := enc.Encode(ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleRecommend runs the recommender workflow without streaming and
// returns the final outcome in one response.
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	out, err := s.recommender.Recommend(r.Context(), model.RecommendInput{
		Query:     req.Message,
		UserID:    req.UserID,
		SessionID: req.SessionID,
	})
	if err != nil {
		s.log.Error().Err(err).Str("session_id", req.SessionID).Msg("recommend failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errx.UserMessage(err)})
		return
	}

	ids := out.ItemIDs
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, recommendResponse{
		ItemIDs:    ids,
		Message:    out.Message,
		SessionID:  req.SessionID,
		Iterations: out.Iterations,
		Metadata:   out.Metadata,
	})
}

// handleHealth pings every registered dependency with a short deadline.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	for _, check := range s.checks {
		if err := check.Check(ctx); err != nil {
			s.log.Warn().Err(err).Str("dependency", check.Name).Msg("health check failed")
			body[check.Name] = "down"
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		body[check.Name] = "ok"
	}
	writeJSON(w, status, body)
}
