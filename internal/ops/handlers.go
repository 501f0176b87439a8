package ops

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mbeaufort/mnemo/pkg/memory"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status: "ok",
			Uptime: time.Since(s.startedAt).Round(time.Second).String(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// ContextResponse is the JSON shape of a context preview.
type ContextResponse struct {
	ConversationID string        `json:"conversation_id"`
	RecentTurns    []TurnView    `json:"recent_turns"`
	Pins           []PinView     `json:"pins"`
	Summaries      []SummaryView `json:"summaries"`
	TotalTokens    int           `json:"total_tokens"`
	Truncated      bool          `json:"truncated"`
}

// TurnView is a turn as rendered in the preview.
type TurnView struct {
	ID         string   `json:"id"`
	Role       string   `json:"role"`
	Content    string   `json:"content"`
	Importance *float64 `json:"importance,omitempty"`
}

// PinView is a pin as rendered in the preview.
type PinView struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Importance float64 `json:"importance"`
	Kind       string  `json:"kind"`
}

// SummaryView is a summary as rendered in the preview.
type SummaryView struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	TurnCount int    `json:"turn_count"`
}

// handleDebugContext previews the assembled context for a conversation.
// An optional ?budget= query overrides the default token budget.
func (s *Server) handleDebugContext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID := chi.URLParam(r, "conversationID")

		budget := 0
		if raw := r.URL.Query().Get("budget"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				http.Error(w, "budget must be a positive integer", http.StatusBadRequest)
				return
			}
			budget = parsed
		}

		built, err := s.engine.BuildContextWithBudget(r.Context(), conversationID, budget)
		if err != nil {
			s.logger.Error("ops: context preview failed",
				"conversation", conversationID, "error", err)
			http.Error(w, "context assembly failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toContextResponse(built))
	}
}

func toContextResponse(c memory.Context) ContextResponse {
	resp := ContextResponse{
		ConversationID: c.ConversationID,
		RecentTurns:    make([]TurnView, 0, len(c.RecentTurns)),
		Pins:           make([]PinView, 0, len(c.Pins)),
		Summaries:      make([]SummaryView, 0, len(c.Summaries)),
		TotalTokens:    c.TotalTokens,
		Truncated:      c.Truncated,
	}
	for _, t := range c.RecentTurns {
		resp.RecentTurns = append(resp.RecentTurns, TurnView{
			ID:         t.ID,
			Role:       string(t.Role),
			Content:    t.Content,
			Importance: t.Importance,
		})
	}
	for _, p := range c.Pins {
		resp.Pins = append(resp.Pins, PinView{
			ID:         p.ID,
			Content:    p.Content,
			Importance: p.Importance,
			Kind:       string(p.Kind),
		})
	}
	for _, sum := range c.Summaries {
		resp.Summaries = append(resp.Summaries, SummaryView{
			ID:        sum.ID,
			Content:   sum.Content,
			TurnCount: sum.TurnCount,
		})
	}
	return resp
}
