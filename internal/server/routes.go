package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sellio/bidcore/internal/handlers"
	mw "github.com/sellio/bidcore/internal/middleware"
	"github.com/sellio/bidcore/pkg/jwt"
)

func (s *Server) APIRoutes(mux *chi.Mux, jm jwt.JWTManager, bids *handlers.BidHandler, auctions *handlers.AuctionHandler, admin *handlers.AdminHandler) {
	mux.Route("/api/v1", func(r chi.Router) {
		// Public read projections
		r.Get("/items/{itemId}/bids", bids.BidHistory)
		r.Get("/items/{itemId}/highest-bid", bids.HighestBid)

		// Bidder surface
		r.Group(func(r chi.Router) {
			r.Use(mw.AuthMiddleware(jm))
			r.Post("/items/{itemId}/bids", bids.PlaceBid)
			r.Get("/bids/mine", bids.MyBids)

			// Seller surface
			r.Patch("/items/{itemId}/reserve", auctions.UpdateReserve)
			r.Post("/items/{itemId}/end", auctions.EndAuction)
		})

		// Admin surface
		r.Group(func(r chi.Router) {
			r.Use(mw.AuthMiddleware(jm))
			r.Use(mw.RequireAdmin)
			r.Put("/admin/commission", admin.UpdateCommission)
			r.Get("/admin/commission/preview", admin.CommissionPreview)
			r.Get("/admin/audit", admin.AuditTrail)
			r.Post("/admin/audit/verify", admin.VerifyIntegrity)
		})
	})
}

func (s *Server) CommonRoutes(mux *chi.Mux) {
	mux.Get("/api/v1/health", healthCheck)
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"message": "ok",
		"time":    time.Now().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	json.NewEncoder(w).Encode(resp)
}
