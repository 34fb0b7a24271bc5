package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/averma/kyc-verify/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	customersHandler := handlers.NewCustomersHandler(s.service)
	documentsHandler := handlers.NewDocumentsHandler(s.service, s.config.Uploads.Dir)
	livenessHandler := handlers.NewLivenessHandler(s.service)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Customers
		r.Post("/customers", customersHandler.Create)
		r.Get("/customers", customersHandler.List)
		r.Get("/customers/{id}", customersHandler.Get)
		r.Post("/customers/{id}/blacklist", customersHandler.Blacklist)

		// Document capture stages
		r.Post("/customers/{id}/documents/primary", documentsHandler.SubmitPrimary)
		r.Post("/customers/{id}/documents/secondary", documentsHandler.SubmitSecondary)

		// Liveness stage
		r.Post("/customers/{id}/liveness", livenessHandler.Submit)

		// Existing customer verification by face
		r.Post("/verify", livenessHandler.VerifyExisting)
	})

	// Serve stored document images for review screens.
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.config.Uploads.Dir)))
	s.router.Get("/uploads/*", fileServer.ServeHTTP)
}
