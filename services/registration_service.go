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
	"gorm.io/gorm/clause"
)

// RegistrationService owns the capacity-bounded admission of new
// registrations and the point-in-time availability read.
type RegistrationService struct {
	DB   *gorm.DB
	Feed *AvailabilityFeed
}

func NewRegistrationService(db *gorm.DB, feed *AvailabilityFeed) *RegistrationService {
	return &RegistrationService{DB: db, Feed: feed}
}

// SubmitParticipant is one roster entry in a submission.
type SubmitParticipant struct {
	DisplayName string `json:"display_name"`
	GameID      string `json:"game_id"`
}

// SubmitInput carries one registration attempt. PaymentRef is the
// reference string the form layer produced after uploading the payment
// screenshot; the file itself never reaches this service.
type SubmitInput struct {
	TournamentKey string              `json:"tournament_key"`
	TeamName      string              `json:"team_name"`
	LeaderName    string              `json:"leader_name"`
	LeaderGameID  string              `json:"leader_game_id"`
	LeaderEmail   string              `json:"leader_email"`
	LeaderPhone   string              `json:"leader_phone"`
	PaymentRef    string              `json:"payment_ref"`
	Teammates     []SubmitParticipant `json:"teammates"`
}

// SubmitResult reports an accepted registration. SlotsRemaining is the
// snapshot immediately after this submission, not a live value.
type SubmitResult struct {
	Registration   models.Registration `json:"registration"`
	SlotsRemaining int64               `json:"slots_remaining"`
}

// lockForUpdate takes the exclusive tournament row lock that serializes
// concurrent submissions against one tournament. FOR UPDATE is
// postgres-only syntax; sqlite's database-level write lock already
// serializes the transaction.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// Submit admits or rejects one registration attempt. The capacity
// check and the inserts run inside a single transaction that holds the
// tournament's row lock, so two concurrent submissions for the same
// tournament can never both see the last free slot. On any error the
// transaction rolls back and no rows remain.
func (s *RegistrationService) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	tournament, err := s.validate(ctx, &input)
	if err != nil {
		return nil, err
	}

	registration := models.Registration{
		ID:           uuid.NewString(),
		TournamentID: tournament.ID,
		Status:       models.RegistrationStatusPending,
		TeamName:     input.TeamName,
		LeaderName:   input.LeaderName,
		LeaderGameID: input.LeaderGameID,
		LeaderEmail:  input.LeaderEmail,
		LeaderPhone:  input.LeaderPhone,
		PaymentRef:   input.PaymentRef,
	}

	roster := make([]models.Participant, 0, tournament.Mode.TeamSize())
	roster = append(roster, models.Participant{
		ID:             uuid.NewString(),
		RegistrationID: registration.ID,
		DisplayName:    input.LeaderName,
		GameID:         input.LeaderGameID,
		SlotPosition:   0,
	})
	for i, mate := range input.Teammates {
		roster = append(roster, models.Participant{
			ID:             uuid.NewString(),
			RegistrationID: registration.ID,
			DisplayName:    mate.DisplayName,
			GameID:         mate.GameID,
			SlotPosition:   i + 1,
		})
	}

	var slotsRemaining int64
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-read under the row lock; active flag and capacity may have
		// changed since validation.
		var locked models.Tournament
		if err := lockForUpdate(tx).First(&locked, "id = ?", tournament.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTournamentNotFound
			}
			return fmt.Errorf("tx.First tournament -> %w", err)
		}
		if !locked.Active {
			return ErrTournamentInactive
		}

		var filled int64
		if err := tx.Model(&models.Registration{}).
			Where("tournament_id = ? AND status IN ?", locked.ID,
				[]models.RegistrationStatus{models.RegistrationStatusPending, models.RegistrationStatusApproved}).
			Count(&filled).Error; err != nil {
			return fmt.Errorf("tx.Count registrations -> %w", err)
		}
		if filled >= int64(locked.Capacity) {
			return ErrTournamentFull
		}

		if err := tx.Create(&registration).Error; err != nil {
			return fmt.Errorf("tx.Create registration -> %w", err)
		}
		for i := range roster {
			if err := tx.Create(&roster[i]).Error; err != nil {
				return fmt.Errorf("tx.Create participant %d -> %w", i, err)
			}
		}

		slotsRemaining = int64(locked.Capacity) - (filled + 1)
		return nil
	})
	if err != nil {
		return nil, err
	}

	registration.Participants = roster
	s.broadcastAvailability(ctx, tournament)

	return &SubmitResult{
		Registration:   registration,
		SlotsRemaining: slotsRemaining,
	}, nil
}

// validate checks everything that does not need the row lock and
// resolves the tournament key. Roster shape depends on the mode, so
// the catalog read happens here; Submit re-reads the row under lock.
func (s *RegistrationService) validate(ctx context.Context, input *SubmitInput) (*models.Tournament, error) {
	input.TournamentKey = strings.TrimSpace(input.TournamentKey)
	input.TeamName = strings.TrimSpace(input.TeamName)
	input.LeaderName = strings.TrimSpace(input.LeaderName)
	input.LeaderGameID = strings.TrimSpace(input.LeaderGameID)
	input.PaymentRef = strings.TrimSpace(input.PaymentRef)

	if input.TournamentKey == "" {
		return nil, fmt.Errorf("%w: tournament_key is required", ErrValidation)
	}
	if input.LeaderName == "" {
		return nil, fmt.Errorf("%w: leader_name is required", ErrValidation)
	}
	if input.LeaderGameID == "" {
		return nil, fmt.Errorf("%w: leader_game_id is required", ErrValidation)
	}
	if input.PaymentRef == "" {
		return nil, fmt.Errorf("%w: payment_ref is required", ErrValidation)
	}

	var tournament models.Tournament
	if err := s.DB.WithContext(ctx).First(&tournament, "key = ?", input.TournamentKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("s.DB.First tournament -> %w", err)
	}
	if !tournament.Active {
		return nil, ErrTournamentInactive
	}

	teamSize := tournament.Mode.TeamSize()
	if teamSize > 1 && input.TeamName == "" {
		return nil, fmt.Errorf("%w: team_name is required for %s", ErrValidation, tournament.Mode)
	}
	if teamSize == 1 {
		input.TeamName = ""
	}
	if len(input.Teammates) != teamSize-1 {
		return nil, fmt.Errorf("%w: %s requires exactly %d teammates, got %d",
			ErrValidation, tournament.Mode, teamSize-1, len(input.Teammates))
	}

	seen := map[string]bool{strings.ToLower(input.LeaderGameID): true}
	for i := range input.Teammates {
		input.Teammates[i].DisplayName = strings.TrimSpace(input.Teammates[i].DisplayName)
		input.Teammates[i].GameID = strings.TrimSpace(input.Teammates[i].GameID)
		if input.Teammates[i].DisplayName == "" || input.Teammates[i].GameID == "" {
			return nil, fmt.Errorf("%w: teammate %d needs display_name and game_id", ErrValidation, i+1)
		}
		gameID := strings.ToLower(input.Teammates[i].GameID)
		if seen[gameID] {
			return nil, fmt.Errorf("%w: duplicate game_id %q in roster", ErrValidation, input.Teammates[i].GameID)
		}
		seen[gameID] = true
	}

	return &tournament, nil
}

// Availability is the point-in-time read that backs listing pages and
// the degraded (non-streaming) mode of slot widgets.
func (s *RegistrationService) Availability(ctx context.Context, key string) (Availability, error) {
	var tournament models.Tournament
	if err := s.DB.WithContext(ctx).First(&tournament, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Availability{}, ErrTournamentNotFound
		}
		return Availability{}, fmt.Errorf("s.DB.First tournament -> %w", err)
	}

	return s.availabilityFor(ctx, &tournament)
}

func (s *RegistrationService) availabilityFor(ctx context.Context, tournament *models.Tournament) (Availability, error) {
	var filled int64
	if err := s.DB.WithContext(ctx).Model(&models.Registration{}).
		Where("tournament_id = ? AND status IN ?", tournament.ID,
			[]models.RegistrationStatus{models.RegistrationStatusPending, models.RegistrationStatusApproved}).
		Count(&filled).Error; err != nil {
		return Availability{}, fmt.Errorf("s.DB.Count registrations -> %w", err)
	}

	return Availability{
		TournamentID: tournament.ID,
		Key:          tournament.Key,
		Capacity:     tournament.Capacity,
		Filled:       filled,
		Remaining:    int64(tournament.Capacity) - filled,
	}, nil
}

// broadcastAvailability pushes a fresh snapshot to the feed. Called
// strictly after commit; a failed recount only costs liveness, the
// reconciliation job re-broadcasts on its next tick.
func (s *RegistrationService) broadcastAvailability(ctx context.Context, tournament *models.Tournament) {
	snap, err := s.availabilityFor(ctx, tournament)
	if err != nil {
		log.Printf("[Feed] Recount failed for %s: %v", tournament.Key, err)
		return
	}
	s.Feed.Publish(snap)
}

// SubmitRegistration handles POST /tournaments/:key/registrations.
func (s *RegistrationService) SubmitRegistration(c *fiber.Ctx) error {
	var input SubmitInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	input.TournamentKey = c.Params("key")

	result, err := s.Submit(c.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			return c.Status(400).JSON(fiber.Map{"error": "validation_error", "detail": err.Error()})
		case errors.Is(err, ErrTournamentNotFound):
			return c.Status(404).JSON(fiber.Map{"error": "tournament_not_found"})
		case errors.Is(err, ErrTournamentInactive):
			return c.Status(409).JSON(fiber.Map{"error": "tournament_inactive"})
		case errors.Is(err, ErrTournamentFull):
			// Expected and frequent: the UI shows "Tournament Full",
			// not a system error.
			return c.Status(409).JSON(fiber.Map{"error": "tournament_full"})
		}
		log.Printf("ERROR submitting registration for %s: %v", input.TournamentKey, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	return c.Status(201).JSON(fiber.Map{
		"message":         "registration submitted, pending payment verification",
		"registration":    result.Registration,
		"slots_remaining": result.SlotsRemaining,
	})
}

// GetAvailability handles GET /tournaments/:key/availability.
func (s *RegistrationService) GetAvailability(c *fiber.Ctx) error {
	snap, err := s.Availability(c.Context(), c.Params("key"))
	if err != nil {
		if errors.Is(err, ErrTournamentNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "tournament_not_found"})
		}
		log.Printf("ERROR reading availability for %s: %v", c.Params("key"), err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(snap)
}
