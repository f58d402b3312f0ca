package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gmz-labs/voicexp/internal/application/query"
	"github.com/gmz-labs/voicexp/internal/domain/presence"
	"github.com/gmz-labs/voicexp/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "voicexp",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":      "/health",
			"rank":        "/api/v1/members/{id}/rank",
			"leaderboard": "/api/v1/leaderboard",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// handleReady handles the readiness endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetMemberRank handles GET /api/v1/members/{id}/rank
func (s *Server) handleGetMemberRank(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetMemberRankHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Rank handler not configured")
		return
	}

	result, err := s.deps.GetMemberRankHandler.Handle(r.Context(), query.GetMemberRankQuery{
		MemberID: r.PathValue("id"),
	})
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to get member rank", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get member rank")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, nil)
}

// handleGetLeaderboard handles GET /api/v1/leaderboard?limit=n
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard handler not configured")
		return
	}

	limit, err := getQueryParamInt(r, "limit", query.DefaultLeaderboardSize)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), query.GetLeaderboardQuery{Limit: limit})
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to get leaderboard", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get leaderboard")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: result.TotalCount})
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESENCE INGESTION
// ══════════════════════════════════════════════════════════════════════════════

// VoiceStateUpdate is the body of POST /api/v1/voice-states.
//
// With Snapshot set, States replaces everything known about the guild.
// Otherwise States are upserted one by one (a state without a channel means
// the member left) and Left lists members to forget.
type VoiceStateUpdate struct {
	Snapshot bool                  `json:"snapshot"`
	States   []presence.VoiceState `json:"states"`
	Left     []string              `json:"left,omitempty"`
}

func (u VoiceStateUpdate) validate() error {
	for i, st := range u.States {
		if st.MemberID == "" {
			return fmt.Errorf("states[%d]: member_id is required", i)
		}
	}
	for i, id := range u.Left {
		if id == "" {
			return fmt.Errorf("left[%d]: member_id is required", i)
		}
	}
	if u.Snapshot && len(u.Left) > 0 {
		return errors.New("left is not allowed with snapshot")
	}
	return nil
}

// handleIngestVoiceStates handles POST /api/v1/voice-states
func (s *Server) handleIngestVoiceStates(w http.ResponseWriter, r *http.Request) {
	var update VoiceStateUpdate
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&update); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_payload", "Body must be a voice state update")
		return
	}
	if err := update.validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}

	ctx := r.Context()
	log := logger.FromContext(ctx)

	if update.Snapshot {
		if err := s.deps.VoiceStates.ReplaceVoiceStates(ctx, update.States); err != nil {
			log.Error("failed to replace voice states", "error", err)
			writeJSONError(w, http.StatusBadGateway, "store_unavailable", "Failed to store voice states")
			return
		}
	} else {
		for _, st := range update.States {
			if err := s.deps.VoiceStates.UpsertVoiceState(ctx, st); err != nil {
				log.Error("failed to upsert voice state", "member_id", st.MemberID, "error", err)
				writeJSONError(w, http.StatusBadGateway, "store_unavailable", "Failed to store voice states")
				return
			}
		}
		for _, id := range update.Left {
			if err := s.deps.VoiceStates.RemoveVoiceState(ctx, id); err != nil {
				log.Error("failed to remove voice state", "member_id", id, "error", err)
				writeJSONError(w, http.StatusBadGateway, "store_unavailable", "Failed to store voice states")
				return
			}
		}
	}

	log.Debug("voice states ingested",
		"snapshot", update.Snapshot,
		"states", len(update.States),
		"left", len(update.Left),
	)
	writeJSON(w, http.StatusOK, map[string]int{
		"accepted": len(update.States) + len(update.Left),
	})
}
