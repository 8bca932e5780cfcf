package betting

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/reedzbet/backend/internal/ettime"
	"github.com/reedzbet/backend/internal/metrics"
	"github.com/reedzbet/backend/internal/middleware"
	"github.com/reedzbet/backend/internal/models"
)

// Request/response structs use snake_case JSON.

type CreateBetRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AnswerType  string    `json:"answer_type"`
	CloseAt     time.Time `json:"close_at"`
}

type ResolveBetRequest struct {
	CorrectAnswer string `json:"correct_answer"`
}

type PlacePredictionRequest struct {
	Value string `json:"value"`
}

type BetResponse struct {
	ID                string     `json:"id"`
	CreatorID         string     `json:"creator_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	AnswerType        string     `json:"answer_type"`
	Status            string     `json:"status"`
	CloseAt           time.Time  `json:"close_at"`
	CloseAtDisplay    string     `json:"close_at_display"`
	CorrectAnswer     *string    `json:"correct_answer,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	ResolvedAtDisplay string     `json:"resolved_at_display,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type RewardEntry struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

type ResolveBetResponse struct {
	Bet     BetResponse   `json:"bet"`
	Rewards []RewardEntry `json:"rewards"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// --- POST /api/v1/bets ---

func (h *Handler) CreateBet(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromCtx(r.Context())
	if caller == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req CreateBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.AnswerType == "" || req.CloseAt.IsZero() {
		http.Error(w, "title, answer_type and close_at are required", http.StatusBadRequest)
		return
	}
	bet, err := h.svc.Create(r.Context(), caller, req.Title, req.Description, req.AnswerType, req.CloseAt)
	if err != nil {
		h.writeError(w, err, "create bet")
		return
	}
	metrics.BetsCreated.Inc()
	writeJSON(w, http.StatusCreated, betToResponse(bet))
}

// --- GET /api/v1/bets ---

func (h *Handler) ListBets(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", models.BetStatusOpen, models.BetStatusClosed, models.BetStatusResolved:
	default:
		http.Error(w, "status must be open, closed or resolved", http.StatusBadRequest)
		return
	}
	bets, err := h.svc.ListByStatus(r.Context(), status)
	if err != nil {
		h.writeError(w, err, "list bets")
		return
	}
	resp := make([]BetResponse, 0, len(bets))
	for _, b := range bets {
		resp = append(resp, betToResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- GET /api/v1/bets/{id} ---

func (h *Handler) GetBet(w http.ResponseWriter, r *http.Request) {
	betID, ok := h.betIDFromPath(w, r)
	if !ok {
		return
	}
	bet, err := h.svc.Get(r.Context(), betID)
	if err != nil {
		h.writeError(w, err, "get bet")
		return
	}
	writeJSON(w, http.StatusOK, betToResponse(bet))
}

// --- POST /api/v1/bets/{id}/close ---

func (h *Handler) CloseBet(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromCtx(r.Context())
	if caller == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	betID, ok := h.betIDFromPath(w, r)
	if !ok {
		return
	}
	bet, err := h.svc.Close(r.Context(), caller, betID)
	if err != nil {
		h.writeError(w, err, "close bet")
		return
	}
	metrics.BetsClosed.Inc()
	writeJSON(w, http.StatusOK, betToResponse(bet))
}

// --- POST /api/v1/bets/{id}/resolve ---

func (h *Handler) ResolveBet(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromCtx(r.Context())
	if caller == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	betID, ok := h.betIDFromPath(w, r)
	if !ok {
		return
	}
	var req ResolveBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.CorrectAnswer == "" {
		http.Error(w, "correct_answer is required", http.StatusBadRequest)
		return
	}
	bet, rewards, err := h.svc.Resolve(r.Context(), caller, betID, req.CorrectAnswer)
	if err != nil {
		h.writeError(w, err, "resolve bet")
		return
	}

	var distributed int64
	entries := make([]RewardEntry, 0, len(rewards))
	for userID, amount := range rewards {
		entries = append(entries, RewardEntry{UserID: userID.String(), Amount: amount})
		distributed += amount
	}
	metrics.BetsResolved.Inc()
	metrics.ReedzDistributed.Add(float64(distributed))
	h.log.Info("bet resolved", "bet_id", betID, "predictors", len(entries), "reedz_distributed", distributed)

	writeJSON(w, http.StatusOK, ResolveBetResponse{Bet: betToResponse(bet), Rewards: entries})
}

// --- POST /api/v1/bets/{id}/predictions ---

func (h *Handler) PlacePrediction(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromCtx(r.Context())
	if caller == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	betID, ok := h.betIDFromPath(w, r)
	if !ok {
		return
	}
	var req PlacePredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Value == "" {
		http.Error(w, "value is required", http.StatusBadRequest)
		return
	}
	pred, err := h.svc.PlacePrediction(r.Context(), caller, betID, req.Value)
	if err != nil {
		h.writeError(w, err, "place prediction")
		return
	}
	metrics.PredictionsPlaced.Inc()
	writeJSON(w, http.StatusCreated, pred)
}

// --- GET /api/v1/bets/{id}/predictions ---

func (h *Handler) ListPredictions(w http.ResponseWriter, r *http.Request) {
	betID, ok := h.betIDFromPath(w, r)
	if !ok {
		return
	}
	preds, err := h.svc.PredictionsForBet(r.Context(), betID)
	if err != nil {
		h.writeError(w, err, "list predictions")
		return
	}
	if preds == nil {
		preds = []PredictionWithUser{}
	}
	writeJSON(w, http.StatusOK, preds)
}

// --- POST /api/v1/admin/season-reset ---

func (h *Handler) SeasonReset(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromCtx(r.Context())
	if caller == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.svc.SeasonReset(r.Context(), caller); err != nil {
		h.writeError(w, err, "season reset")
		return
	}
	h.log.Info("season reset", "by", caller.Username)
	writeJSON(w, http.StatusOK, map[string]string{"status": "season reset complete"})
}

func (h *Handler) betIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid bet id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, models.ErrBetNotFound):
		http.Error(w, "bet not found", http.StatusNotFound)
	case errors.Is(err, models.ErrUnauthorized):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, models.ErrBetNotOpen),
		errors.Is(err, models.ErrBetNotClosed),
		errors.Is(err, models.ErrBetAlreadyResolved),
		errors.Is(err, models.ErrDuplicatePrediction):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrMalformedAnswer):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, models.ErrUnsupportedAnswerType),
		errors.Is(err, ErrCloseTimeNotFuture):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error(action+" failed", "error", err)
		http.Error(w, action+" failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func betToResponse(b *models.Bet) BetResponse {
	return BetResponse{
		ID:                b.ID.String(),
		CreatorID:         b.CreatorID.String(),
		Title:             b.Title,
		Description:       b.Description,
		AnswerType:        string(b.AnswerType),
		Status:            b.Status(),
		CloseAt:           b.CloseAt,
		CloseAtDisplay:    ettime.Format(b.CloseAt),
		CorrectAnswer:     b.CorrectAnswer,
		ResolvedAt:        b.ResolvedAt,
		ResolvedAtDisplay: ettime.FormatPtr(b.ResolvedAt),
		CreatedAt:         b.CreatedAt,
	}
}
