package handlers

import (
	"tournament-registration-system/middleware"
	"tournament-registration-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAdminRoutes(app *fiber.App, adminService *services.AdminService) {
	// Admin routes need the gateway-verified user context; the
	// services enforce the admin flag on every mutation themselves.
	admin := app.Group("/admin", middleware.UserContextMiddleware())

	// Status transitions
	admin.Patch("/registrations/:id/status", adminService.UpdateRegistrationStatus)
	admin.Patch("/registrations/status", adminService.UpdateRegistrationStatusBatch)

	// Read projections for the admin panel (display + export)
	admin.Get("/registrations", adminService.GetRegistrations)
	admin.Get("/registrations/:id", adminService.GetRegistrationByID)
	admin.Get("/registrations/:id/audit", adminService.GetRegistrationAudit)
}
