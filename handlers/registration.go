package handlers

import (
	"tournament-registration-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRegistrationRoutes(app *fiber.App, catalogService *services.CatalogService, registrationService *services.RegistrationService) {
	// Public routes — gateway token only, no user context required
	app.Get("/tournaments", catalogService.GetTournaments)
	app.Get("/tournaments/:key/availability", registrationService.GetAvailability)
	app.Get("/tournaments/:key/availability/stream", registrationService.StreamAvailability)

	// One submission per completed form; the form layer uploads the
	// payment screenshot elsewhere and passes only payment_ref here.
	app.Post("/tournaments/:key/registrations", registrationService.SubmitRegistration)
}
