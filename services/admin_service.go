package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"tournament-registration-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminService owns the pending → approved/rejected state machine and
// its audit trail, plus the read projections the admin panel displays.
type AdminService struct {
	DB           *gorm.DB
	Registration *RegistrationService
}

func NewAdminService(db *gorm.DB, registration *RegistrationService) *AdminService {
	return &AdminService{DB: db, Registration: registration}
}

// Actor is the caller identity the gateway verified. The service never
// authenticates anyone itself; it only honors the admin flag.
type Actor struct {
	ID    string
	Admin bool
}

// TransitionInput is one status decision on one registration.
type TransitionInput struct {
	RegistrationID string
	NewStatus      models.RegistrationStatus
	Reason         string
}

// BatchFailure reports why one id in a batch was skipped.
type BatchFailure struct {
	RegistrationID string `json:"registration_id"`
	Error          string `json:"error"`
}

// BatchResult summarizes a best-effort batch: ids are processed
// independently and a failure never rolls back the others.
type BatchResult struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Failures  []BatchFailure `json:"failures,omitempty"`
}

// Transition applies one admin decision. The status update and its
// audit entry commit together; every accepted call appends exactly one
// audit row. Re-transitioning an already-terminal registration is
// allowed — last writer wins, and the audit trail keeps both
// decisions on record — but a decision that re-claims a freed slot
// (rejected → approved) repeats the capacity check under the
// tournament row lock, since the slot may have been resold meanwhile.
func (s *AdminService) Transition(ctx context.Context, actor Actor, input TransitionInput) error {
	if !actor.Admin {
		return ErrUnauthorized
	}

	input.Reason = strings.TrimSpace(input.Reason)
	switch input.NewStatus {
	case models.RegistrationStatusApproved:
		input.Reason = ""
	case models.RegistrationStatusRejected:
		if input.Reason == "" {
			return fmt.Errorf("%w: reason is required when rejecting", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: new status must be approved or rejected, got %q", ErrValidation, input.NewStatus)
	}

	var tournament models.Tournament
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var registration models.Registration
		if err := tx.First(&registration, "id = ?", input.RegistrationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRegistrationNotFound
			}
			return fmt.Errorf("tx.First registration -> %w", err)
		}

		if input.NewStatus.OccupiesSlot() && !registration.Status.OccupiesSlot() {
			// Moving back into an occupying status re-claims a slot
			// that was freed by the earlier rejection and may have been
			// resold since. Same lock scope as Submit: count and write
			// under the tournament row lock.
			if err := lockForUpdate(tx).First(&tournament, "id = ?", registration.TournamentID).Error; err != nil {
				return fmt.Errorf("tx.First tournament -> %w", err)
			}
			var filled int64
			if err := tx.Model(&models.Registration{}).
				Where("tournament_id = ? AND status IN ?", tournament.ID,
					[]models.RegistrationStatus{models.RegistrationStatusPending, models.RegistrationStatusApproved}).
				Count(&filled).Error; err != nil {
				return fmt.Errorf("tx.Count registrations -> %w", err)
			}
			if filled >= int64(tournament.Capacity) {
				return ErrTournamentFull
			}
		} else if err := tx.First(&tournament, "id = ?", registration.TournamentID).Error; err != nil {
			return fmt.Errorf("tx.First tournament -> %w", err)
		}

		if err := tx.Model(&registration).Updates(map[string]interface{}{
			"status":        input.NewStatus,
			"reject_reason": input.Reason,
		}).Error; err != nil {
			return fmt.Errorf("tx.Updates registration -> %w", err)
		}

		entry := models.AuditEntry{
			ID:             uuid.NewString(),
			RegistrationID: registration.ID,
			ActorID:        actor.ID,
			Status:         input.NewStatus,
			Reason:         input.Reason,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("tx.Create audit entry -> %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	// A rejection frees a slot, an approval keeps it occupied; either
	// way the live count may have moved, so push a fresh snapshot.
	s.Registration.broadcastAvailability(ctx, &tournament)

	return nil
}

// TransitionBatch applies the same decision to a set of ids, best
// effort. The caller decides whether partial failure is acceptable;
// the engine just reports what happened per id.
func (s *AdminService) TransitionBatch(ctx context.Context, actor Actor, ids []string, newStatus models.RegistrationStatus, reason string) BatchResult {
	var result BatchResult
	for _, id := range ids {
		err := s.Transition(ctx, actor, TransitionInput{
			RegistrationID: id,
			NewStatus:      newStatus,
			Reason:         reason,
		})
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, BatchFailure{
				RegistrationID: id,
				Error:          err.Error(),
			})
			continue
		}
		result.Succeeded++
	}

	return result
}

// ListRegistrations is the admin panel's projection over the ledger:
// registrations with roster and tournament preloaded, optionally
// filtered by tournament key and status.
func (s *AdminService) ListRegistrations(ctx context.Context, tournamentKey string, status models.RegistrationStatus) ([]models.Registration, error) {
	query := s.DB.WithContext(ctx).
		Preload("Participants").
		Preload("Tournament").
		Order("created_at ASC")

	if tournamentKey != "" {
		var tournament models.Tournament
		if err := s.DB.WithContext(ctx).First(&tournament, "key = ?", tournamentKey).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTournamentNotFound
			}
			return nil, fmt.Errorf("s.DB.First tournament -> %w", err)
		}
		query = query.Where("tournament_id = ?", tournament.ID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var registrations []models.Registration
	if err := query.Find(&registrations).Error; err != nil {
		return nil, fmt.Errorf("query.Find registrations -> %w", err)
	}

	return registrations, nil
}

// GetRegistration returns one registration with roster and tournament.
func (s *AdminService) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	var registration models.Registration
	err := s.DB.WithContext(ctx).
		Preload("Participants").
		Preload("Tournament").
		First(&registration, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("s.DB.First registration -> %w", err)
	}

	return &registration, nil
}

// AuditTrail returns the decision history of one registration, oldest
// first.
func (s *AdminService) AuditTrail(ctx context.Context, registrationID string) ([]models.AuditEntry, error) {
	var registration models.Registration
	if err := s.DB.WithContext(ctx).First(&registration, "id = ?", registrationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("s.DB.First registration -> %w", err)
	}

	var entries []models.AuditEntry
	if err := s.DB.WithContext(ctx).
		Where("registration_id = ?", registrationID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("s.DB.Find audit entries -> %w", err)
	}

	return entries, nil
}

func actorFromLocals(c *fiber.Ctx) Actor {
	actor := Actor{}
	if id, ok := c.Locals("user_id").(string); ok {
		actor.ID = id
	}
	if roles, ok := c.Locals("user_roles").([]string); ok {
		for _, r := range roles {
			if r == "admin" {
				actor.Admin = true
				break
			}
		}
	}
	return actor
}

func transitionErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return c.Status(403).JSON(fiber.Map{"error": "unauthorized"})
	case errors.Is(err, ErrValidation):
		return c.Status(400).JSON(fiber.Map{"error": "validation_error", "detail": err.Error()})
	case errors.Is(err, ErrRegistrationNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "registration_not_found"})
	case errors.Is(err, ErrTournamentFull):
		return c.Status(409).JSON(fiber.Map{"error": "tournament_full"})
	}
	log.Printf("ERROR transitioning registration: %v", err)
	return c.Status(500).JSON(fiber.Map{"error": "DB error"})
}

// UpdateRegistrationStatus handles PATCH /admin/registrations/:id/status.
func (s *AdminService) UpdateRegistrationStatus(c *fiber.Ctx) error {
	type Req struct {
		Status models.RegistrationStatus `json:"status"`
		Reason string                    `json:"reason"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}

	err := s.Transition(c.Context(), actorFromLocals(c), TransitionInput{
		RegistrationID: c.Params("id"),
		NewStatus:      req.Status,
		Reason:         req.Reason,
	})
	if err != nil {
		return transitionErrorResponse(c, err)
	}

	return c.JSON(fiber.Map{"message": "registration " + string(req.Status)})
}

// UpdateRegistrationStatusBatch handles PATCH /admin/registrations/status.
func (s *AdminService) UpdateRegistrationStatusBatch(c *fiber.Ctx) error {
	type Req struct {
		RegistrationIDs []string                  `json:"registration_ids"`
		Status          models.RegistrationStatus `json:"status"`
		Reason          string                    `json:"reason"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if len(req.RegistrationIDs) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "validation_error", "detail": "registration_ids is required"})
	}

	actor := actorFromLocals(c)
	if !actor.Admin {
		return c.Status(403).JSON(fiber.Map{"error": "unauthorized"})
	}

	result := s.TransitionBatch(c.Context(), actor, req.RegistrationIDs, req.Status, req.Reason)

	return c.JSON(result)
}

// GetRegistrations handles GET /admin/registrations.
func (s *AdminService) GetRegistrations(c *fiber.Ctx) error {
	registrations, err := s.ListRegistrations(c.Context(),
		c.Query("tournament"), models.RegistrationStatus(c.Query("status")))
	if err != nil {
		if errors.Is(err, ErrTournamentNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "tournament_not_found"})
		}
		log.Printf("ERROR listing registrations: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(fiber.Map{"registrations": registrations, "count": len(registrations)})
}

// GetRegistrationByID handles GET /admin/registrations/:id.
func (s *AdminService) GetRegistrationByID(c *fiber.Ctx) error {
	registration, err := s.GetRegistration(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, ErrRegistrationNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "registration_not_found"})
		}
		log.Printf("ERROR fetching registration %s: %v", c.Params("id"), err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(registration)
}

// GetRegistrationAudit handles GET /admin/registrations/:id/audit.
func (s *AdminService) GetRegistrationAudit(c *fiber.Ctx) error {
	entries, err := s.AuditTrail(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, ErrRegistrationNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "registration_not_found"})
		}
		log.Printf("ERROR fetching audit trail for %s: %v", c.Params("id"), err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(fiber.Map{"audit": entries})
}
