package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/reedzbet/backend/internal/metrics"
	"github.com/reedzbet/backend/internal/models"
)

// Request/response structs use snake_case JSON.

type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	AdminCode string `json:"admin_code"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RequestResetRequest struct {
	Email string `json:"email"`
}

type ConfirmResetRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type UserResponse struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	ReedzBalance int64  `json:"reedz_balance"`
	CreatedAt    string `json:"created_at"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type statusResponse struct {
	Status string `json:"status"`
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

// --- POST /api/v1/auth/register ---

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		http.Error(w, "missing username, email or password", http.StatusBadRequest)
		return
	}
	user, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password, req.Role, req.AdminCode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	metrics.UsersRegistered.Inc()
	h.log.Info("user registered", "user_id", user.ID, "username", user.Username, "role", user.Role)
	writeJSON(w, http.StatusCreated, UserToResponse(user))
}

// --- POST /api/v1/auth/login ---

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "missing username or password", http.StatusBadRequest)
		return
	}
	token, user, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: UserToResponse(user)})
}

// --- POST /api/v1/auth/password-reset/request ---

func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req RequestResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Email == "" {
		http.Error(w, "missing email", http.StatusBadRequest)
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "reset code sent"})
}

// --- POST /api/v1/auth/password-reset/confirm ---

func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ConfirmResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Code == "" || req.NewPassword == "" {
		http.Error(w, "missing email, code or new_password", http.StatusBadRequest)
		return
	}
	if err := h.svc.ConfirmPasswordReset(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "password updated"})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		http.Error(w, "invalid username or password", http.StatusUnauthorized)
	case errors.Is(err, ErrAdminCodeInvalid):
		http.Error(w, "incorrect admin verification code", http.StatusForbidden)
	case errors.Is(err, models.ErrUserNotFound):
		http.Error(w, "no account with that email", http.StatusNotFound)
	case errors.Is(err, models.ErrDuplicateUser):
		http.Error(w, "username or email already registered", http.StatusConflict)
	case errors.Is(err, ErrInvalidUsername):
		http.Error(w, "username must contain only letters and digits", http.StatusBadRequest)
	case errors.Is(err, models.ErrInvalidRole):
		http.Error(w, "invalid role", http.StatusBadRequest)
	case errors.Is(err, models.ErrInvalidResetCode):
		http.Error(w, "reset code is invalid", http.StatusBadRequest)
	case errors.Is(err, models.ErrResetCodeExpired):
		http.Error(w, "reset code has expired", http.StatusBadRequest)
	default:
		h.log.Error("auth request failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// UserToResponse is shared with the users package so profiles and login
// results serialize identically.
func UserToResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:           u.ID.String(),
		Username:     u.Username,
		Email:        u.Email,
		Role:         string(u.Role),
		ReedzBalance: u.ReedzBalance,
		CreatedAt:    u.CreatedAt.UTC().Format(time.RFC3339),
	}
}
