package models

import (
	"time"
)

// Game identifies one of the two titles the platform runs tournaments for
type Game string

const (
	GameStarStrike Game = "star-strike"
	GameRiftArena  Game = "rift-arena"
)

// Mode indicates the team size bracket of a tournament
type Mode string

const (
	ModeSolo  Mode = "solo"
	ModeDuo   Mode = "duo"
	ModeSquad Mode = "squad"
)

// TeamSize returns the number of players a single registration carries
// for this mode, leader included.
func (m Mode) TeamSize() int {
	switch m {
	case ModeDuo:
		return 2
	case ModeSquad:
		return 4
	default:
		return 1
	}
}

// Valid reports whether the mode is one of solo/duo/squad.
func (m Mode) Valid() bool {
	return m == ModeSolo || m == ModeDuo || m == ModeSquad
}

// Tournament is one catalog entry per (game, mode) pair. Capacity is
// counted in registrations — one team is one slot, not one player.
type Tournament struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Game        Game      `json:"game" gorm:"not null;uniqueIndex:idx_game_mode"`
	Mode        Mode      `json:"mode" gorm:"not null;uniqueIndex:idx_game_mode"`
	Key         string    `json:"key" gorm:"not null;uniqueIndex"` // slug of "<game>-<mode>"
	EntryFee    int       `json:"entry_fee"`                       // cents
	PrizeFirst  int       `json:"prize_first"`
	PrizeSecond int       `json:"prize_second"`
	PrizeThird  int       `json:"prize_third"`
	Capacity    int       `json:"capacity" gorm:"not null"`
	Active      bool      `json:"active" gorm:"default:true"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Calculated fields (not stored in DB)
	Filled    int64 `json:"filled" gorm:"-"`
	Remaining int64 `json:"remaining" gorm:"-"`
}
