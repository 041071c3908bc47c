package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizclash/go/internal/duel/queue"
	"github.com/mcdev12/quizclash/go/internal/duel/session"
	"github.com/mcdev12/quizclash/go/internal/models"
	"github.com/mcdev12/quizclash/go/internal/players"
)

// QueueService is what the HTTP layer needs from matchmaking.
type QueueService interface {
	Enqueue(ctx context.Context, playerID uuid.UUID, elo int) (*models.QueueEntry, error)
	Cancel(ctx context.Context, playerID uuid.UUID) error
	Status(ctx context.Context, playerID uuid.UUID) (*queue.StatusSnapshot, error)
	Stats(ctx context.Context) (*models.QueueStats, error)
}

// SessionService is what the HTTP layer needs from the duel session.
type SessionService interface {
	SelectQuestion(ctx context.Context, sessionID, playerID, questionID uuid.UUID) (*models.GameQuestion, error)
	Buzz(ctx context.Context, sessionID, playerID uuid.UUID, clientTS time.Time) (*session.BuzzResult, error)
	SubmitAnswer(ctx context.Context, sessionID, playerID uuid.UUID, submitted string) (*session.AnswerVerdict, error)
	Abandon(ctx context.Context, sessionID, playerID uuid.UUID) (*models.GameSession, error)
	Snapshot(ctx context.Context, sessionID uuid.UUID) (*session.Snapshot, error)
}

// PlayerService is what the HTTP layer needs from the player domain.
type PlayerService interface {
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	EnsurePlayer(ctx context.Context, id uuid.UUID, displayName string, elo int) error
	GetMatchRecord(ctx context.Context, sessionID uuid.UUID) (*models.MatchRecord, error)
}

// Handlers exposes the duel API over JSON HTTP. Websocket push carries the
// live game; these endpoints carry the player actions and snapshots.
type Handlers struct {
	queue    QueueService
	sessions SessionService
	players  PlayerService
}

func NewHandlers(queue QueueService, sessions SessionService, players PlayerService) *Handlers {
	return &Handlers{queue: queue, sessions: sessions, players: players}
}

// RegisterRoutes registers the duel API routes with an HTTP mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /matchmaking/join", h.handleJoin)
	mux.HandleFunc("DELETE /matchmaking/leave", h.handleLeave)
	mux.HandleFunc("GET /matchmaking/status", h.handleStatus)
	mux.HandleFunc("GET /matchmaking/stats", h.handleStats)
	mux.HandleFunc("GET /sessions/{id}", h.handleSnapshot)
	mux.HandleFunc("POST /sessions/{id}/select", h.handleSelect)
	mux.HandleFunc("POST /sessions/{id}/buzz", h.handleBuzz)
	mux.HandleFunc("POST /sessions/{id}/answer", h.handleAnswer)
	mux.HandleFunc("POST /sessions/{id}/abandon", h.handleAbandon)
	mux.HandleFunc("GET /matches/{id}", h.handleMatchRecord)
	log.Info().Msg("duel API routes registered")
}

type joinRequest struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
}

func (h *Handlers) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player_id")
		return
	}

	// Mirror the player row first so ratings have somewhere to land.
	rating := req.Rating
	if rating <= 0 {
		rating = 1200
	}
	if err := h.players.EnsurePlayer(r.Context(), playerID, req.DisplayName, rating); err != nil {
		h.writeDomainError(w, err)
		return
	}
	p, err := h.players.GetPlayer(r.Context(), playerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if _, err := h.queue.Enqueue(r.Context(), playerID, p.Rating); err != nil {
		h.writeDomainError(w, err)
		return
	}
	status, err := h.queue.Status(r.Context(), playerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handlers) handleLeave(w http.ResponseWriter, r *http.Request) {
	playerID, ok := parsePlayerQuery(w, r)
	if !ok {
		return
	}
	if err := h.queue.Cancel(r.Context(), playerID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(queue.SearchStateIdle)})
}

func (h *Handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	playerID, ok := parsePlayerQuery(w, r)
	if !ok {
		return
	}
	status, err := h.queue.Status(r.Context(), playerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handlers) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// snapshotResponse wraps the session snapshot with the server time so
// clients can sync countdowns against the authoritative clock.
type snapshotResponse struct {
	*session.Snapshot
	ServerTime time.Time `json:"server_time"`
}

func (h *Handlers) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionPath(w, r)
	if !ok {
		return
	}
	snap, err := h.sessions.Snapshot(r.Context(), sessionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Snapshot: snap, ServerTime: time.Now().UTC()})
}

type selectRequest struct {
	PlayerID   string `json:"player_id"`
	QuestionID string `json:"question_id"`
}

func (h *Handlers) handleSelect(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionPath(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player_id")
		return
	}
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question_id")
		return
	}

	q, err := h.sessions.SelectQuestion(r.Context(), sessionID, playerID, questionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"question_id": q.QuestionID,
		"position":    q.Position,
		"category":    q.Category,
		"text":        q.Text,
		"point_value": q.PointValue,
		"state":       q.State,
	})
}

type buzzRequest struct {
	PlayerID string    `json:"player_id"`
	ClientTS time.Time `json:"client_ts"`
}

func (h *Handlers) handleBuzz(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionPath(w, r)
	if !ok {
		return
	}
	var req buzzRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player_id")
		return
	}

	res, err := h.sessions.Buzz(r.Context(), sessionID, playerID, req.ClientTS)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type answerRequest struct {
	PlayerID string `json:"player_id"`
	Text     string `json:"text"`
}

func (h *Handlers) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionPath(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player_id")
		return
	}

	verdict, err := h.sessions.SubmitAnswer(r.Context(), sessionID, playerID, req.Text)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

type abandonRequest struct {
	PlayerID string `json:"player_id"`
}

func (h *Handlers) handleAbandon(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionPath(w, r)
	if !ok {
		return
	}
	var req abandonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	playerID, err := uuid.Parse(req.PlayerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player_id")
		return
	}

	s, err := h.sessions.Abandon(r.Context(), sessionID, playerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.ID,
		"status":     s.Status,
		"winner_id":  s.WinnerID,
	})
}

func (h *Handlers) handleMatchRecord(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionPath(w, r)
	if !ok {
		return
	}
	rec, err := h.players.GetMatchRecord(r.Context(), sessionID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// writeDomainError maps domain errors onto the fixed user-facing message
// set. Anything unmapped is a 500 with a generic body; the detail goes to
// the log, not the client.
func (h *Handlers) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "game not found")
	case errors.Is(err, session.ErrSessionInactive):
		writeError(w, http.StatusConflict, "game not in progress")
	case errors.Is(err, session.ErrNotYourTurn), errors.Is(err, session.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "not your turn")
	case errors.Is(err, session.ErrAlreadyUsed):
		writeError(w, http.StatusConflict, "question already used")
	case errors.Is(err, session.ErrAlreadyBuzzed):
		writeError(w, http.StatusConflict, "already buzzed")
	case errors.Is(err, session.ErrBuzzerClosed):
		writeError(w, http.StatusConflict, "buzzer closed")
	case errors.Is(err, session.ErrInvalidAnswer):
		writeError(w, http.StatusBadRequest, "invalid answer")
	case errors.Is(err, queue.ErrNoActiveEntry):
		writeError(w, http.StatusNotFound, "no match found")
	case errors.Is(err, players.ErrPlayerNotFound):
		writeError(w, http.StatusNotFound, "player not found")
	case errors.Is(err, players.ErrMatchRecordNotFound):
		writeError(w, http.StatusNotFound, "game not found")
	default:
		log.Error().Err(err).Msg("unhandled API error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parsePlayerQuery(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("player_id")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return uuid.Nil, false
	}
	playerID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player_id")
		return uuid.Nil, false
	}
	return playerID, true
}

func parseSessionPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sessionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return sessionID, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
