package db

import (
	"time"

	"gorm.io/datatypes"
)

// Game is the one frequently-contended shared record: all three client roles
// (facilitator, player, display) derive their view from it.
type Game struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	Code                 string         `gorm:"size:8;uniqueIndex;not null" json:"code"`
	FacilitatorName      *string        `gorm:"size:64" json:"facilitator_name"`
	Status               string         `gorm:"size:32;not null" json:"status"`
	CurrentRound         int            `gorm:"not null;default:0" json:"current_round"`
	TotalRounds          int            `gorm:"not null" json:"total_rounds"`
	TimerSeconds         int            `gorm:"not null" json:"timer_seconds"`
	TimerStartedAt       *time.Time     `json:"timer_started_at"`
	TimerPausedRemaining *int           `json:"timer_paused_remaining"`
	Reflection           datatypes.JSON `gorm:"type:jsonb" json:"reflection"`
	CreatedAt            time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null" json:"-"`
}

// Player is a cross-game identity. Email is a natural key for returning
// players; anonymous players get a generated placeholder address.
type Player struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Email       *string   `gorm:"size:128;uniqueIndex" json:"email"`
	DisplayName string    `gorm:"size:64;not null" json:"display_name"`
	Avatar      *string   `gorm:"size:64" json:"avatar"`
	TeamID      *uint     `gorm:"index" json:"team_id"`
	Team        *Team     `json:"team,omitempty"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"-"`
}

type Team struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:64;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`
}

// GamePlayer is the membership row and the score ledger. Score is only ever
// written through a conditional update on its previous value.
type GamePlayer struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	GameID   uint      `gorm:"index;not null;uniqueIndex:idx_game_players_game_player" json:"game_id"`
	PlayerID uint      `gorm:"not null;uniqueIndex:idx_game_players_game_player" json:"player_id"`
	Score    int       `gorm:"not null;default:0" json:"score"`
	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
	Player   *Player   `json:"player,omitempty"`
}

// Task is an authored writing challenge. Read-only to the game core; seeded
// by cmd/load-tasks.
type Task struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	Title                string    `gorm:"size:128;not null" json:"title"`
	Description          string    `gorm:"type:text;not null" json:"description"`
	Category             *string   `gorm:"size:32" json:"category"`
	SuggestedTimeSeconds int       `gorm:"not null;default:180" json:"suggested_time_seconds"`
	JudgingCriteria      *string   `gorm:"type:text" json:"judging_criteria"`
	CreatedAt            time.Time `gorm:"not null" json:"-"`
	UpdatedAt            time.Time `gorm:"not null" json:"-"`
}

type GameTask struct {
	ID          uint  `gorm:"primaryKey" json:"id"`
	GameID      uint  `gorm:"index;not null;uniqueIndex:idx_game_tasks_game_round" json:"game_id"`
	TaskID      uint  `gorm:"not null" json:"task_id"`
	RoundNumber int   `gorm:"not null;uniqueIndex:idx_game_tasks_game_round" json:"round_number"`
	Task        *Task `json:"task,omitempty"`
}

// Submission holds one player's response for one round. Resubmission
// overwrites Content and SubmittedAt; the judge fields survive it.
type Submission struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	GameTaskID  uint      `gorm:"index;not null;uniqueIndex:idx_submissions_task_player" json:"game_task_id"`
	PlayerID    uint      `gorm:"not null;uniqueIndex:idx_submissions_task_player" json:"player_id"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	SubmittedAt time.Time `gorm:"not null" json:"submitted_at"`
	AIScore     *int      `json:"ai_score"`
	JudgeQuote  *string   `gorm:"size:512" json:"judge_quote"`
	CohostQuote *string   `gorm:"size:512" json:"cohost_quote"`
	Player      *Player   `json:"player,omitempty"`
}

// Event is the persisted change feed: one row per mutation, scoped to a game.
// Clients replay it over HTTP or receive it live over the websocket channel.
type Event struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	GameID    uint           `gorm:"index;not null" json:"game_id"`
	Type      string         `gorm:"size:64;not null" json:"type"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}
