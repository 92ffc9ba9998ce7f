package server

import (
	"errors"
	"time"

	"wordwrangler/internal/db"

	"gorm.io/gorm"
)

// gameView is the full payload every client role polls: the game row plus the
// members, the running round's task and the whole task schedule. The derived
// timer_remaining is a convenience only; clients computing their own value
// from the stored reference point get the same answer.
type gameView struct {
	db.Game
	TimerRemaining int             `json:"timer_remaining"`
	GamePlayers    []db.GamePlayer `json:"game_players"`
	CurrentTask    *db.GameTask    `json:"current_task"`
	GameTasks      []db.GameTask   `json:"game_tasks"`
}

func (s *Server) buildGameView(game *db.Game) (*gameView, error) {
	view := &gameView{
		Game:           *game,
		TimerRemaining: remainingSeconds(game, time.Now().UTC()),
		GamePlayers:    []db.GamePlayer{},
		GameTasks:      []db.GameTask{},
	}

	if err := s.db.Preload("Player").Preload("Player.Team").
		Where("game_id = ?", game.ID).
		Order("joined_at asc").
		Find(&view.GamePlayers).Error; err != nil {
		return nil, err
	}

	if err := s.db.Preload("Task").
		Where("game_id = ?", game.ID).
		Order("round_number asc").
		Find(&view.GameTasks).Error; err != nil {
		return nil, err
	}

	if game.CurrentRound > 0 {
		var current db.GameTask
		err := s.db.Preload("Task").
			Where("game_id = ? AND round_number = ?", game.ID, game.CurrentRound).
			First(&current).Error
		if err == nil {
			view.CurrentTask = &current
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return view, nil
}
