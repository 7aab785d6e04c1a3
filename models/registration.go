package models

import (
	"time"
)

// RegistrationStatus tracks admin verification of the off-band payment
type RegistrationStatus string

const (
	RegistrationStatusPending  RegistrationStatus = "pending"
	RegistrationStatusApproved RegistrationStatus = "approved"
	RegistrationStatusRejected RegistrationStatus = "rejected"
)

// Terminal reports whether the status is an admin decision.
func (s RegistrationStatus) Terminal() bool {
	return s == RegistrationStatusApproved || s == RegistrationStatusRejected
}

// OccupiesSlot reports whether a registration in this status counts
// against tournament capacity. Pending reserves a slot just like
// approved — payment verification is asynchronous and a slot must not
// be double-sold while it runs.
func (s RegistrationStatus) OccupiesSlot() bool {
	return s == RegistrationStatusPending || s == RegistrationStatusApproved
}

// Registration is one claim on one tournament slot. Rows are only ever
// created through RegistrationService.Submit and are never hard-deleted;
// a rejected registration stays on record with its reason.
type Registration struct {
	ID           string             `json:"id" gorm:"primaryKey"`
	TournamentID string             `json:"tournament_id" gorm:"not null;index"`
	Status       RegistrationStatus `json:"status" gorm:"not null;default:'pending';index"`
	TeamName     string             `json:"team_name"` // empty for solo
	LeaderName   string             `json:"leader_name" gorm:"not null"`
	LeaderGameID string             `json:"leader_game_id" gorm:"not null"`
	LeaderEmail  string             `json:"leader_email"`
	LeaderPhone  string             `json:"leader_phone"`
	PaymentRef   string             `json:"payment_ref" gorm:"not null"` // reference to the off-band payment, upload handled elsewhere
	RejectReason string             `json:"reject_reason,omitempty"`
	CreatedAt    time.Time          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time          `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Tournament   Tournament    `json:"tournament,omitempty" gorm:"foreignKey:TournamentID"`
	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:RegistrationID"`
}

// Participant is one named player on a registration's roster. Rows are
// written atomically with their parent registration and never updated.
type Participant struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	RegistrationID string    `json:"registration_id" gorm:"not null;index"`
	DisplayName    string    `json:"display_name" gorm:"not null"`
	GameID         string    `json:"game_id" gorm:"not null"`
	SlotPosition   int       `json:"slot_position"` // 0 = leader
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}
