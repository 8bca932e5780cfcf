// Package router assembles the HTTP API under /api/v1.
package router

import (
	"net/http"

	"github.com/reedzbet/backend/internal/auth"
	"github.com/reedzbet/backend/internal/betting"
	"github.com/reedzbet/backend/internal/middleware"
	"github.com/reedzbet/backend/internal/users"
)

// New returns the API handler. Auth routes are public; everything else
// requires a bearer token, and admin routes additionally require the Admin
// role. Services re-check the caller's role, so the middleware is a
// fast-path rejection, not the only gate.
func New(
	authHandler *auth.Handler,
	betHandler *betting.Handler,
	userHandler *users.Handler,
	tokens middleware.TokenValidator,
	lookup middleware.UserLookup,
) http.Handler {
	mux := http.NewServeMux()

	authn := middleware.Authenticate(tokens, lookup)
	admin := func(h http.Handler) http.Handler {
		return authn(middleware.RequireAdmin(h))
	}

	// Public.
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/password-reset/request", authHandler.RequestPasswordReset)
	mux.HandleFunc("POST /api/v1/auth/password-reset/confirm", authHandler.ConfirmPasswordReset)

	// Any signed-in user.
	mux.Handle("GET /api/v1/me", authn(http.HandlerFunc(userHandler.Me)))
	mux.Handle("GET /api/v1/me/predictions", authn(http.HandlerFunc(userHandler.MyPredictions)))
	mux.Handle("GET /api/v1/leaderboard", authn(http.HandlerFunc(userHandler.Leaderboard)))
	mux.Handle("GET /api/v1/bets", authn(http.HandlerFunc(betHandler.ListBets)))
	mux.Handle("GET /api/v1/bets/{id}", authn(http.HandlerFunc(betHandler.GetBet)))
	mux.Handle("GET /api/v1/bets/{id}/predictions", authn(http.HandlerFunc(betHandler.ListPredictions)))
	mux.Handle("POST /api/v1/bets/{id}/predictions", authn(http.HandlerFunc(betHandler.PlacePrediction)))

	// Admin.
	mux.Handle("POST /api/v1/bets", admin(http.HandlerFunc(betHandler.CreateBet)))
	mux.Handle("POST /api/v1/bets/{id}/close", admin(http.HandlerFunc(betHandler.CloseBet)))
	mux.Handle("POST /api/v1/bets/{id}/resolve", admin(http.HandlerFunc(betHandler.ResolveBet)))
	mux.Handle("POST /api/v1/admin/season-reset", admin(http.HandlerFunc(betHandler.SeasonReset)))
	mux.Handle("GET /api/v1/users", admin(http.HandlerFunc(userHandler.ListUsers)))
	mux.Handle("PATCH /api/v1/users/{id}/role", admin(http.HandlerFunc(userHandler.ChangeRole)))
	mux.Handle("PATCH /api/v1/users/{id}/balance", admin(http.HandlerFunc(userHandler.AdjustBalance)))
	mux.Handle("DELETE /api/v1/users/{id}", admin(http.HandlerFunc(userHandler.DeleteUser)))

	return mux
}
