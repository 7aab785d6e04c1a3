package services

import (
	"context"
	"testing"

	"tournament-registration-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionApprove(t *testing.T) {
	db, _, registration, admin := newTestServices(t)
	tournament := createTournament(t, db, models.GameStarStrike, models.ModeSolo, 10)
	ctx := context.Background()

	result, err := registration.Submit(ctx, submitInputFor(tournament, "a"))
	require.NoError(t, err)

	err = admin.Transition(ctx, Actor{ID: "admin-1", Admin: true}, TransitionInput{
		RegistrationID: result.Registration.ID,
		NewStatus:      models.RegistrationStatusApproved,
		Reason:         "ignored on approval",
	})
	require.NoError(t, err)

	var updated models.Registration
	require.NoError(t, db.First(&updated, "id = ?", result.Registration.ID).Error)
	assert.Equal(t, models.RegistrationStatusApproved, updated.Status)
	assert.Empty(t, updated.RejectReason)

	var entries []models.AuditEntry
	require.NoError(t, db.Where("registration_id = ?", updated.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "admin-1", entries[0].ActorID)
	assert.Equal(t, models.RegistrationStatusApproved, entries[0].Status)
	assert.Empty(t, entries[0].Reason)

	// Approval keeps the slot occupied.
	snap, err := registration.Availability(ctx, tournament.Key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.Filled)
}

func TestTransitionRejectRequiresReason(t *testing.T) {
	db, _, registration, admin := newTestServices(t)
	tournament := createTournament(t, db, models.GameRiftArena, models.ModeSolo, 10)
	ctx := context.Background()

	result, err := registration.Submit(ctx, submitInputFor(tournament, "a"))
	require.NoError(t, err)

	actor := Actor{ID: "admin-1", Admin: true}
	err = admin.Transition(ctx, actor, TransitionInput{
		RegistrationID: result.Registration.ID,
		NewStatus:      models.RegistrationStatusRejected,
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.EqualValues(t, 0, countRows(t, db, &models.AuditEntry{}))

	err = admin.Transition(ctx, actor, TransitionInput{
		RegistrationID: result.Registration.ID,
		NewStatus:      models.RegistrationStatusRejected,
		Reason:         "screenshot does not match amount",
	})
	require.NoError(t, err)

	var updated models.Registration
	require.NoError(t, db.First(&updated, "id = ?", result.Registration.ID).Error)
	assert.Equal(t, models.RegistrationStatusRejected, updated.Status)
	assert.Equal(t, "screenshot does not match amount", updated.RejectReason)
}

func TestTransitionInvalidStatus(t *testing.T) {
	db, _, registration, admin := newTestServices(t)
	tournament := createTournament(t, db, models.GameStarStrike, models.ModeSolo, 10)
	ctx := context.Background()

	result, err := registration.Submit(ctx, submitInputFor(tournament, "a"))
	require.NoError(t, err)

	err = admin.Transition(ctx, Actor{ID: "admin-1", Admin: true}, TransitionInput{
		RegistrationID: result.Registration.ID,
		NewStatus:      models.RegistrationStatusPending,
	})
	require.ErrorIs(t, err, ErrValidation)
	assert.EqualValues(t, 0, countRows(t, db, &models.AuditEntry{}))
}

func TestTransitionUnauthorized(t *testing.T) {
	db, _, registration, admin := newTestServices(t)
	tournament := createTournament(t, db, models.GameStarStrike, models.ModeSolo, 10)
	ctx := context.Background()

	result, err := registration.Submit(ctx, submitInputFor(tournament, "a"))
	require.NoError(t, err)

	err = admin.Transition(ctx, Actor{ID: "user-9", Admin: false}, TransitionInput{
		RegistrationID: result.Registration.ID,
		NewStatus:      models.RegistrationStatusApproved,
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	var unchanged models.Registration
	require.NoError(t, db.First(&unchanged, "id = ?", result.Registration.ID).Error)
	assert.Equal(t, models.RegistrationStatusPending, unchanged.Status)
	assert.EqualValues(t, 0, countRows(t, db, &models.AuditEntry{}))
}

func TestTransitionNotFound(t *testing.T) {
	db, _, _, admin := newTestServices(t)

	err := admin.Transition(context.Background(), Actor{ID: "admin-1", Admin: true}, TransitionInput{
		RegistrationID: "no-such-id",
		NewStatus:      models.RegistrationStatusApproved,
	})
	require.ErrorIs(t, err, ErrRegistrationNotFound)
	assert.EqualValues(t, 0, countRows(t, db, &models.AuditEntry{}))
}

// Re-transitioning a terminal registration is allowed: last writer
// wins and every call leaves its own audit entry.
func TestTransitionTerminalOverwrite(t *testing.T) {
	db, _, registration, admin := newTestServices(t)
	tournament := createTournament(t, db, models.GameRiftArena, models.ModeDuo, 10)
	ctx := context.Background()
	actor := Actor{ID: "admin-1", Admin: true}

	result, err := registration.Submit(ctx, submitInputFor(tournament, "a"))
	require.NoError(t, err)

	require.NoError(t, admin.Transition(ctx, actor, TransitionInput{
		RegistrationID: result.Registration.ID,
		NewStatus:      models.RegistrationStatusApproved,
	}))
	require.NoError(t, admin.Transition(ctx, actor, TransitionInput{
		RegistrationID: result.Registration.ID,
		NewStatus:      models.RegistrationStatusRejected,
		Reason:         "chargeback",
	}))

	var updated models.Registration
	require.NoError(t, db.First(&updated, "id = ?", result.Registration.ID).Error)
	assert.Equal(t, models.RegistrationStatusRejected, updated.Status)

	entries, err := admin.AuditTrail(ctx, result.Registration.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	statuses := []models.RegistrationStatus{entries[0].Status, entries[1].Status}
	assert.ElementsMatch(t, statuses,
		[]models.RegistrationStatus{models.RegistrationStatusApproved, models.RegistrationStatusRejected})

	// The rejection freed the slot again.
	snap, err := registration.Availability(ctx, tournament.Key)
	require.NoError(t, err)
	assert.EqualValues(t, 0, snap.Filled)
}

// Re-approving a rejected registration re-claims a slot, so once the
// freed slot has been resold the re-approval must bounce instead of
// pushing the tournament past its capacity.
func TestTransitionReapproveIntoFullTournament(t *testing.T) {
	db, _, registration, admin := newTestServices(t)
	tournament := createTournament(t, db, models.GameStarStrike, models.ModeSolo, 1)
	ctx := context.Background()
	actor := Actor{ID: "admin-1", Admin: true}

	a, err := registration.Submit(ctx, submitInputFor(tournament, "a"))
	require.NoError(t, err)

	require.NoError(t, admin.Transition(ctx, actor, TransitionInput{
		RegistrationID: a.Registration.ID,
		NewStatus:      models.RegistrationStatusRejected,
		Reason:         "payment not received",
	}))

	// The freed slot is resold.
	b, err := registration.Submit(ctx, submitInputFor(tournament, "b"))
	require.NoError(t, err)

	err = admin.Transition(ctx, actor, TransitionInput{
		RegistrationID: a.Registration.ID,
		NewStatus:      models.RegistrationStatusApproved,
	})
	require.ErrorIs(t, err, ErrTournamentFull)

	// The bounced call changed nothing: A stays rejected, no audit
	// entry was appended, and the capacity invariant holds.
	var unchanged models.Registration
	require.NoError(t, db.First(&unchanged, "id = ?", a.Registration.ID).Error)
	assert.Equal(t, models.RegistrationStatusRejected, unchanged.Status)
	assert.EqualValues(t, 1, countRows(t, db, &models.AuditEntry{}))

	snap, err := registration.Availability(ctx, tournament.Key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.Filled)
	assert.EqualValues(t, 0, snap.Remaining)

	// Once the slot is free again the re-approval goes through.
	require.NoError(t, admin.Transition(ctx, actor, TransitionInput{
		RegistrationID: b.Registration.ID,
		NewStatus:      models.RegistrationStatusRejected,
		Reason:         "duplicate entry",
	}))
	require.NoError(t, admin.Transition(ctx, actor, TransitionInput{
		RegistrationID: a.Registration.ID,
		NewStatus:      models.RegistrationStatusApproved,
	}))

	snap, err = registration.Availability(ctx, tournament.Key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, snap.Filled)
	assert.EqualValues(t, 0, snap.Remaining)
}

func TestTransitionBatchBestEffort(t *testing.T) {
	db, _, registration, admin := newTestServices(t)
	tournament := createTournament(t, db, models.GameStarStrike, models.ModeSolo, 10)
	ctx := context.Background()
	actor := Actor{ID: "admin-1", Admin: true}

	a, err := registration.Submit(ctx, submitInputFor(tournament, "a"))
	require.NoError(t, err)
	b, err := registration.Submit(ctx, submitInputFor(tournament, "b"))
	require.NoError(t, err)

	ids := []string{a.Registration.ID, "ghost-id", b.Registration.ID}
	result := admin.TransitionBatch(ctx, actor, ids, models.RegistrationStatusApproved, "")

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "ghost-id", result.Failures[0].RegistrationID)

	// The good ids went through despite the failure in the middle.
	for _, id := range []string{a.Registration.ID, b.Registration.ID} {
		var reg models.Registration
		require.NoError(t, db.First(&reg, "id = ?", id).Error)
		assert.Equal(t, models.RegistrationStatusApproved, reg.Status)
	}
	assert.EqualValues(t, 2, countRows(t, db, &models.AuditEntry{}))
}

func TestTransitionBatchUnauthorized(t *testing.T) {
	db, _, registration, admin := newTestServices(t)
	tournament := createTournament(t, db, models.GameStarStrike, models.ModeSolo, 10)
	ctx := context.Background()

	a, err := registration.Submit(ctx, submitInputFor(tournament, "a"))
	require.NoError(t, err)

	result := admin.TransitionBatch(ctx, Actor{ID: "user-9"}, []string{a.Registration.ID},
		models.RegistrationStatusApproved, "")
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	var unchanged models.Registration
	require.NoError(t, db.First(&unchanged, "id = ?", a.Registration.ID).Error)
	assert.Equal(t, models.RegistrationStatusPending, unchanged.Status)
}

func TestListRegistrationsProjection(t *testing.T) {
	db, _, registration, admin := newTestServices(t)
	solo := createTournament(t, db, models.GameStarStrike, models.ModeSolo, 10)
	duo := createTournament(t, db, models.GameStarStrike, models.ModeDuo, 10)
	ctx := context.Background()

	_, err := registration.Submit(ctx, submitInputFor(solo, "s1"))
	require.NoError(t, err)
	d, err := registration.Submit(ctx, submitInputFor(duo, "d1"))
	require.NoError(t, err)

	require.NoError(t, admin.Transition(ctx, Actor{ID: "admin-1", Admin: true}, TransitionInput{
		RegistrationID: d.Registration.ID,
		NewStatus:      models.RegistrationStatusApproved,
	}))

	all, err := admin.ListRegistrations(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	duoOnly, err := admin.ListRegistrations(ctx, duo.Key, "")
	require.NoError(t, err)
	require.Len(t, duoOnly, 1)
	assert.Equal(t, duo.ID, duoOnly[0].Tournament.ID)
	assert.Len(t, duoOnly[0].Participants, 2)

	approved, err := admin.ListRegistrations(ctx, "", models.RegistrationStatusApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, d.Registration.ID, approved[0].ID)

	_, err = admin.ListRegistrations(ctx, "no-such-key", "")
	require.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestAuditTrailNotFound(t *testing.T) {
	_, _, _, admin := newTestServices(t)

	_, err := admin.AuditTrail(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrRegistrationNotFound)
}
