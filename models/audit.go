package models

import (
	"time"
)

// AuditEntry records one admin status decision. Append-only: exactly
// one row per successful transition call, never updated or deleted.
type AuditEntry struct {
	ID             string             `json:"id" gorm:"primaryKey"`
	RegistrationID string             `json:"registration_id" gorm:"not null;index"`
	ActorID        string             `json:"actor_id" gorm:"not null;index"`
	Status         RegistrationStatus `json:"status" gorm:"not null"` // resulting status
	Reason         string             `json:"reason,omitempty"`       // mandatory when status is rejected
	CreatedAt      time.Time          `json:"created_at" gorm:"autoCreateTime;index"`
}
