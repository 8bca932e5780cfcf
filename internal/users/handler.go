package users

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/reedzbet/backend/internal/auth"
	"github.com/reedzbet/backend/internal/betting"
	"github.com/reedzbet/backend/internal/ettime"
	"github.com/reedzbet/backend/internal/middleware"
	"github.com/reedzbet/backend/internal/models"
)

type ChangeRoleRequest struct {
	Role string `json:"role"`
}

type AdjustBalanceRequest struct {
	Delta int64 `json:"delta"`
}

// PredictionHistoryItem is a profile history row with the placement time
// rendered in Eastern time alongside the UTC timestamp.
type PredictionHistoryItem struct {
	betting.UserPrediction
	PlacedAtDisplay string `json:"placed_at_display"`
}

type Handler struct {
	svc  Service
	bets betting.Service
	log  *slog.Logger
}

func NewHandler(svc Service, bets betting.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, bets: bets, log: log}
}

// --- GET /api/v1/me ---

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, auth.UserToResponse(user))
}

// --- GET /api/v1/me/predictions ---

func (h *Handler) MyPredictions(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	predictions, err := h.bets.PredictionsForUser(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]PredictionHistoryItem, len(predictions))
	for i, p := range predictions {
		out[i] = PredictionHistoryItem{
			UserPrediction:  p,
			PlacedAtDisplay: ettime.Format(p.CreatedAt),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// --- GET /api/v1/leaderboard ---

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := h.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- GET /api/v1/users ---

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListUsers(r.Context(), middleware.UserFromCtx(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]auth.UserResponse, len(list))
	for i := range list {
		out[i] = auth.UserToResponse(&list[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// --- PATCH /api/v1/users/{id}/role ---

func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromPath(w, r)
	if !ok {
		return
	}
	var req ChangeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	updated, err := h.svc.ChangeRole(r.Context(), middleware.UserFromCtx(r.Context()), userID, req.Role)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auth.UserToResponse(updated))
}

// --- PATCH /api/v1/users/{id}/balance ---

func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromPath(w, r)
	if !ok {
		return
	}
	var req AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	updated, err := h.svc.AdjustBalance(r.Context(), middleware.UserFromCtx(r.Context()), userID, req.Delta)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, auth.UserToResponse(updated))
}

// --- DELETE /api/v1/users/{id} ---

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromPath(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteUser(r.Context(), middleware.UserFromCtx(r.Context()), userID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func userIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		http.Error(w, "admin role required", http.StatusForbidden)
	case errors.Is(err, models.ErrUserNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidRole):
		http.Error(w, "invalid role", http.StatusBadRequest)
	default:
		h.log.Error("users request failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
