/**
 * @description
 * This file sets up the HTTP router for the settlement service. It defines the
 * API endpoints, associates them with their corresponding handlers, and applies
 * the authentication middleware: JWT for settlement callers, the internal API
 * key for the privileged pool configuration surface.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SettlementRoutes creates and returns a new router for the settlement service.
func SettlementRoutes(h *SettlementHandlers, jwksURL, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Privileged configuration surface, guarded by the internal API key.
	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))

		r.Post("/pools", h.CreatePoolHandler)
		r.Put("/pools/{poolID}/fee-policy", h.UpdateFeePolicyHandler)
	})

	// Settlement surface, guarded by caller JWTs.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		r.Get("/pools/{poolID}", h.GetPoolHandler)
		r.Get("/pools/{poolID}/transfers", h.ListPoolTransfersHandler)

		r.Post("/transfers", h.CreateTransferHandler)
		r.Get("/transfers/{transferID}", h.GetTransferHandler)
		r.Post("/transfers/{transferID}/accept", h.AcceptTransferHandler)
		r.Post("/transfers/{transferID}/reject", h.RejectTransferHandler)
		r.Post("/transfers/{transferID}/expire", h.ExpireTransferHandler)
	})

	return r
}
