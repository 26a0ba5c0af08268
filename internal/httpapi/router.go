package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires every endpoint of spec.md §6 onto a chi.Router. CORS
// allows any origin: the gateway serves public NFT/game data. Only GET,
// POST (for /score) and OPTIONS are allowed through.
func NewRouter(api *API) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		MaxAge:           300,
	}))

	r.Get("/heroes", api.Heroes)
	r.Get("/weapons", api.Weapons)
	r.Get("/lands", api.Lands)
	r.Get("/enhanced-player-data", api.EnhancedPlayerData)
	r.Get("/portfolio", api.Portfolio)
	r.Get("/nfts/{address}", func(w http.ResponseWriter, req *http.Request) {
		api.NFTs(w, req, chi.URLParam(req, "address"))
	})
	r.Post("/score", api.Score)
	r.Get("/timestamp", api.Timestamp)
	r.Get("/blacklist", api.Blacklist)
	r.Get("/health", api.Health)

	return r
}
