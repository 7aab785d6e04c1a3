package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"tournament-registration-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// CatalogService serves the six-row tournament catalog. The catalog is
// read-mostly; writes happen only through the boot-time seed.
type CatalogService struct {
	DB *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{DB: db}
}

// TournamentKey builds the canonical lookup key for a (game, mode) pair.
func TournamentKey(game models.Game, mode models.Mode) string {
	return slug.Make(fmt.Sprintf("%s-%s", game, mode))
}

// GetByKey resolves a tournament key to its catalog row.
func (s *CatalogService) GetByKey(key string) (*models.Tournament, error) {
	var tournament models.Tournament
	if err := s.DB.First(&tournament, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("s.DB.First tournament -> %w", err)
	}

	return &tournament, nil
}

// List returns all active tournaments with their computed availability,
// for listing pages. Counts here are point-in-time reads; live widgets
// use the availability stream instead.
func (s *CatalogService) List() ([]models.Tournament, error) {
	var tournaments []models.Tournament
	if err := s.DB.Where("active = ?", true).
		Order("game ASC, mode ASC").
		Find(&tournaments).Error; err != nil {
		return nil, fmt.Errorf("s.DB.Find tournaments -> %w", err)
	}

	for i := range tournaments {
		var filled int64
		if err := s.DB.Model(&models.Registration{}).
			Where("tournament_id = ? AND status IN ?", tournaments[i].ID,
				[]models.RegistrationStatus{models.RegistrationStatusPending, models.RegistrationStatusApproved}).
			Count(&filled).Error; err != nil {
			return nil, fmt.Errorf("s.DB.Count registrations -> %w", err)
		}
		tournaments[i].Filled = filled
		tournaments[i].Remaining = int64(tournaments[i].Capacity) - filled
	}

	return tournaments, nil
}

// Seed creates the six catalog rows (two games × three modes) when the
// table is empty. Capacities come from CAPACITY_SOLO / CAPACITY_DUO /
// CAPACITY_SQUAD; catalog edits after that are operator-driven and out
// of band.
func (s *CatalogService) Seed() error {
	var count int64
	if err := s.DB.Model(&models.Tournament{}).Count(&count).Error; err != nil {
		return fmt.Errorf("s.DB.Count tournaments -> %w", err)
	}
	if count > 0 {
		return nil
	}

	type modeTerms struct {
		mode        models.Mode
		capacity    int
		entryFee    int
		prizeFirst  int
		prizeSecond int
		prizeThird  int
	}
	terms := []modeTerms{
		{models.ModeSolo, envInt("CAPACITY_SOLO", 48), 500, 10000, 5000, 2500},
		{models.ModeDuo, envInt("CAPACITY_DUO", 24), 800, 16000, 8000, 4000},
		{models.ModeSquad, envInt("CAPACITY_SQUAD", 12), 1200, 24000, 12000, 6000},
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		for _, game := range []models.Game{models.GameStarStrike, models.GameRiftArena} {
			for _, t := range terms {
				tournament := models.Tournament{
					ID:          uuid.NewString(),
					Game:        game,
					Mode:        t.mode,
					Key:         TournamentKey(game, t.mode),
					EntryFee:    t.entryFee,
					PrizeFirst:  t.prizeFirst,
					PrizeSecond: t.prizeSecond,
					PrizeThird:  t.prizeThird,
					Capacity:    t.capacity,
					Active:      true,
				}
				if err := tx.Create(&tournament).Error; err != nil {
					return fmt.Errorf("tx.Create tournament %s -> %w", tournament.Key, err)
				}
				log.Printf("[Catalog] Seeded tournament %s (capacity %d)", tournament.Key, tournament.Capacity)
			}
		}
		return nil
	})
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("[Catalog] Invalid %s=%q, using default %d", key, v, fallback)
	}
	return fallback
}

// GetTournaments handles GET /tournaments.
func (s *CatalogService) GetTournaments(c *fiber.Ctx) error {
	tournaments, err := s.List()
	if err != nil {
		log.Printf("ERROR listing tournaments: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(fiber.Map{"tournaments": tournaments})
}
