package consensusrouter

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/Black-And-White-Club/beauty-contest/app/httpx"
	authdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/auth/domain"
	authhandlers "github.com/Black-And-White-Club/beauty-contest/app/modules/auth/infrastructure/handlers"
	authjwt "github.com/Black-And-White-Club/beauty-contest/app/modules/auth/infrastructure/jwt"
	consensushandlers "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/infrastructure/handlers"
)

// Mount points.
const (
	ResultsPath = "/api/consensus"
	AdminPath   = "/api/admin"
)

// Options tune the HTTP routes.
type Options struct {
	AllowedOrigins []string
	// Provider validates instructor tokens. Nil leaves the admin routes
	// unmounted.
	Provider authjwt.Provider
	Logger   *slog.Logger
}

// Register mounts the result and admin routes on r.
func Register(r chi.Router, h consensushandlers.Handlers, opts Options) {
	r.Route(ResultsPath, func(r chi.Router) {
		r.Use(httpx.CORSMiddleware(opts.AllowedOrigins))

		r.Get("/results", h.HandleResults)
		r.Get("/results/leaderboard.csv", h.HandleLeaderboardCSV)
		r.Get("/results/results.txt", h.HandleResultsText)
		r.Get("/results/leaderboard.xlsx", h.HandleWorkbook)
		r.Get("/results/distribution.png", h.HandleChart)
	})

	if opts.Provider == nil {
		return
	}
	r.Route(AdminPath, func(r chi.Router) {
		r.Use(authhandlers.RequireRole(opts.Provider, authdomain.RoleInstructor, opts.Logger))

		r.Get("/snapshots", h.HandleListSnapshots)
		r.Get("/snapshots/{snapshotID}", h.HandleGetSnapshot)
		r.Post("/finalize", h.HandleFinalize)
	})
}
