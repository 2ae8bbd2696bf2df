package ledgerrouter

import (
	"github.com/go-chi/chi/v5"

	"github.com/Black-And-White-Club/beauty-contest/app/httpx"
	ledgerhandlers "github.com/Black-And-White-Club/beauty-contest/app/modules/ledger/infrastructure/handlers"
)

// BasePath is where the ledger is mounted. Clients append ?table=.
const BasePath = "/api/ledger"

// Options tune the public ledger routes.
type Options struct {
	AllowedOrigins []string
	// SubmitLimiter throttles POSTs per client IP. Nil disables throttling.
	SubmitLimiter *httpx.IPRateLimiter
}

// Register mounts the ledger on r.
func Register(r chi.Router, h ledgerhandlers.Handlers, opts Options) {
	r.Route(BasePath, func(r chi.Router) {
		r.Use(httpx.CORSMiddleware(opts.AllowedOrigins))

		r.Get("/", h.HandleGetTable)
		r.Get("/schedule", h.HandleSchedule)

		r.Group(func(r chi.Router) {
			if opts.SubmitLimiter != nil {
				r.Use(httpx.RateLimitMiddleware(opts.SubmitLimiter))
			}
			r.Post("/", h.HandleSubmit)
		})
	})
}
