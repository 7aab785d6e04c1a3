package services

import (
	"fmt"
	"testing"

	"tournament-registration-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every transaction fully serialized,
	// standing in for the postgres row lock the service takes in
	// production.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Tournament{},
		&models.Registration{},
		&models.Participant{},
		&models.AuditEntry{},
	))

	return db
}

func newTestServices(t *testing.T) (*gorm.DB, *AvailabilityFeed, *RegistrationService, *AdminService) {
	t.Helper()

	db := newTestDB(t)
	feed := NewAvailabilityFeed()
	registration := NewRegistrationService(db, feed)
	admin := NewAdminService(db, registration)

	return db, feed, registration, admin
}

func createTournament(t *testing.T, db *gorm.DB, game models.Game, mode models.Mode, capacity int) *models.Tournament {
	t.Helper()

	tournament := models.Tournament{
		ID:       uuid.NewString(),
		Game:     game,
		Mode:     mode,
		Key:      TournamentKey(game, mode),
		EntryFee: 500,
		Capacity: capacity,
		Active:   true,
	}
	require.NoError(t, db.Create(&tournament).Error)

	return &tournament
}

// submitInputFor builds a valid submission with roster ids derived
// from tag so repeated calls stay distinct.
func submitInputFor(tournament *models.Tournament, tag string) SubmitInput {
	input := SubmitInput{
		TournamentKey: tournament.Key,
		LeaderName:    "Leader " + tag,
		LeaderGameID:  "leader-" + tag,
		LeaderEmail:   tag + "@example.com",
		PaymentRef:    "pay-" + tag,
	}
	if tournament.Mode != models.ModeSolo {
		input.TeamName = "Team " + tag
	}
	for i := 0; i < tournament.Mode.TeamSize()-1; i++ {
		input.Teammates = append(input.Teammates, SubmitParticipant{
			DisplayName: fmt.Sprintf("Mate %s-%d", tag, i),
			GameID:      fmt.Sprintf("mate-%s-%d", tag, i),
		})
	}

	return input
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)

	return n
}
