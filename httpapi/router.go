// Package httpapi exposes the engine over HTTP with chi: enrollment, face
// login and the step-up challenge lifecycle, plus admin and metrics routes.
//
// Images and frames travel as base64 strings in JSON bodies.
package httpapi

import (
	"net/http"
	"time"

	goFaceAuth "github.com/MrEthical07/goFaceAuth"
	"github.com/MrEthical07/goFaceAuth/metrics/export/prometheus"
	faceMiddleware "github.com/MrEthical07/goFaceAuth/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
)

// Handler serves the face authentication API for one engine.
type Handler struct {
	engine *goFaceAuth.Engine
	log    logr.Logger
}

func NewHandler(engine *goFaceAuth.Engine, logger logr.Logger) *Handler {
	return &Handler{engine: engine, log: logger}
}

// NewRouter registers every route. Request logging is left to the caller.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(faceMiddleware.ClientIP)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", prometheus.NewPrometheusExporter(h.engine).Handler())

	r.Route("/face", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)

		r.Route("/step-up", func(r chi.Router) {
			r.Post("/", h.handleBeginStepUp)
			r.Get("/{challengeID}", h.handleStepUpStatus)
			r.Post("/{challengeID}/verify", h.handleVerifyStepUp)
			r.Delete("/{challengeID}", h.handleEndStepUp)
		})

		r.Route("/profiles/{identity}", func(r chi.Router) {
			r.Get("/", h.handleGetProfile)
			r.Post("/disable", h.handleDisableProfile)
			r.Post("/unlock", h.handleUnlock)
			r.Get("/audit", h.handleAuditHistory)
		})

		r.Get("/security-report", h.handleSecurityReport)
	})

	// Demonstrates a route gated by a face step-up proof.
	r.Group(func(r chi.Router) {
		r.Use(faceMiddleware.RequireStepUp(h.engine))
		r.Post("/sensitive/confirm", h.handleSensitive)
	})

	return r
}
