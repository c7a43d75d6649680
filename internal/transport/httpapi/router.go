package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/observability"
)

type RouterOptions struct {
	ServiceName       string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// Store backs /health/ready.
	Store observability.Pinger
}

func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(observability.MetricsMiddleware(opts.ServiceName))
	r.Use(Recovery())
	if opts.RateLimitRequests > 0 {
		window := opts.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		r.Use(httprate.LimitByIP(opts.RateLimitRequests, window))
	}

	r.Get("/health/live", observability.HealthLiveHandler)
	if opts.Store != nil {
		r.Get("/health/ready", observability.HealthReadyHandler(opts.Store))
	}

	convPath := "/api/conversations"
	r.Post(convPath, h.CreateConversation)
	r.Post(convPath+"/direct", h.CreateDirectConversation)
	r.Route(convPath+"/{conversationID}", func(c chi.Router) {
		c.Get("/", h.GetConversation)
		c.Get("/participants", h.ListParticipants)
		c.Post("/participants", h.AddParticipant)
		c.Get("/messages", h.ListMessages)
		c.Post("/messages", h.SendMessage)
	})

	r.Get("/api/users/{userID}/conversations", h.ListUserConversations)

	return otelhttp.NewHandler(r, opts.ServiceName)
}

func Recovery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					observability.GetLogger(r.Context()).Error("panic_recovered",
						zap.Any("error", rec),
						zap.String("request_id", middleware.GetReqID(r.Context())),
					)
					WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
