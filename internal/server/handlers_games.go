package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"wordwrangler/internal/db"
	"wordwrangler/internal/metrics"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type createGameRequest struct {
	FacilitatorName *string `json:"facilitator_name"`
	TotalRounds     int     `json:"total_rounds"`
	TimerSeconds    int     `json:"timer_seconds"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TotalRounds == 0 {
		req.TotalRounds = s.cfg.DefaultTotalRounds
	}
	if req.TimerSeconds == 0 {
		req.TimerSeconds = s.cfg.DefaultTimerSeconds
	}
	if req.TotalRounds < 1 || req.TotalRounds > maxTotalRounds {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("total_rounds must be between 1 and %d", maxTotalRounds))
		return
	}
	if req.TimerSeconds < 1 {
		writeError(w, http.StatusBadRequest, "timer_seconds must be positive")
		return
	}
	if req.FacilitatorName != nil {
		trimmed := strings.TrimSpace(*req.FacilitatorName)
		if trimmed == "" {
			req.FacilitatorName = nil
		} else {
			req.FacilitatorName = &trimmed
		}
	}

	code, err := s.uniqueGameCode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to allocate game code")
		return
	}
	game := db.Game{
		Code:            code,
		FacilitatorName: req.FacilitatorName,
		Status:          statusLobby,
		CurrentRound:    0,
		TotalRounds:     req.TotalRounds,
		TimerSeconds:    req.TimerSeconds,
	}
	if err := s.db.Create(&game).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create game")
		return
	}
	if err := s.assignRandomTasks(&game); err != nil {
		log.Printf("task assignment skipped code=%s error=%v", game.Code, err)
	}
	metrics.GamesCreated.Inc()
	log.Printf("game created code=%s rounds=%d timer=%d", game.Code, game.TotalRounds, game.TimerSeconds)

	view, err := s.buildGameView(&game)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// assignRandomTasks pre-schedules one distinct task per round when the
// library is large enough. The facilitator can still override any round
// before it starts.
func (s *Server) assignRandomTasks(game *db.Game) error {
	var tasks []db.Task
	if err := s.db.Find(&tasks).Error; err != nil {
		return err
	}
	if len(tasks) < game.TotalRounds {
		return fmt.Errorf("library has %d tasks, need %d", len(tasks), game.TotalRounds)
	}
	rand.Shuffle(len(tasks), func(i, j int) { tasks[i], tasks[j] = tasks[j], tasks[i] })
	for round := 1; round <= game.TotalRounds; round++ {
		gameTask := db.GameTask{
			GameID:      game.ID,
			TaskID:      tasks[round-1].ID,
			RoundNumber: round,
		}
		if err := s.db.Create(&gameTask).Error; err != nil {
			return err
		}
	}
	return nil
}

type gameSummary struct {
	db.Game
	PlayerCount int `json:"player_count"`
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	query := s.db.Model(&db.Game{}).Order("created_at desc")
	if status := r.URL.Query().Get("status"); status != "" {
		if !validStatus(status) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status))
			return
		}
		query = query.Where("status = ?", status)
	}
	var games []db.Game
	if err := query.Find(&games).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list games")
		return
	}

	summaries := make([]gameSummary, 0, len(games))
	for i := range games {
		var count int64
		if err := s.db.Model(&db.GamePlayer{}).Where("game_id = ?", games[i].ID).Count(&count).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list games")
			return
		}
		summaries = append(summaries, gameSummary{Game: games[i], PlayerCount: int(count)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": summaries})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	game, err := s.loadGame(r.PathValue("code"))
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			writeError(w, http.StatusNotFound, errGameNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	view, err := s.buildGameView(game)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// patchableGameFields is the compatibility surface clients may write raw.
// Status changes still go through the state machine, with the remaining
// explicit fields overlaid on the transition's own updates.
var patchableGameFields = map[string]struct{}{
	"status":                 {},
	"current_round":          {},
	"timer_seconds":          {},
	"timer_started_at":       {},
	"timer_paused_remaining": {},
}

func (s *Server) handleUpdateGame(w http.ResponseWriter, r *http.Request) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	for name := range fields {
		if _, ok := patchableGameFields[name]; !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown field %q", name))
			return
		}
	}

	game, err := s.loadGame(r.PathValue("code"))
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			writeError(w, http.StatusNotFound, errGameNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}

	fromStatus := game.Status
	updates := map[string]any{}
	if raw, ok := fields["status"]; ok {
		var target string
		if err := json.Unmarshal(raw, &target); err != nil {
			writeError(w, http.StatusBadRequest, "status must be a string")
			return
		}
		if target != game.Status {
			planned, err := s.planTransition(game, target, time.Now().UTC())
			if err != nil {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			for key, value := range planned {
				updates[key] = value
			}
		}
	}

	if raw, ok := fields["current_round"]; ok {
		var round int
		if err := json.Unmarshal(raw, &round); err != nil {
			writeError(w, http.StatusBadRequest, "current_round must be an integer")
			return
		}
		if round < game.CurrentRound {
			writeError(w, http.StatusBadRequest, "current_round cannot decrease")
			return
		}
		if round > game.TotalRounds {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("game only has %d rounds", game.TotalRounds))
			return
		}
		game.CurrentRound = round
		updates["current_round"] = round
	}
	if raw, ok := fields["timer_seconds"]; ok {
		var seconds int
		if err := json.Unmarshal(raw, &seconds); err != nil || seconds < 1 {
			writeError(w, http.StatusBadRequest, "timer_seconds must be a positive integer")
			return
		}
		game.TimerSeconds = seconds
		updates["timer_seconds"] = seconds
	}
	if raw, ok := fields["timer_started_at"]; ok {
		var startedAt *time.Time
		if err := json.Unmarshal(raw, &startedAt); err != nil {
			writeError(w, http.StatusBadRequest, "timer_started_at must be a timestamp or null")
			return
		}
		game.TimerStartedAt = startedAt
		updates["timer_started_at"] = startedAt
	}
	if raw, ok := fields["timer_paused_remaining"]; ok {
		var remaining *int
		if err := json.Unmarshal(raw, &remaining); err != nil {
			writeError(w, http.StatusBadRequest, "timer_paused_remaining must be an integer or null")
			return
		}
		if remaining != nil && *remaining < 0 {
			writeError(w, http.StatusBadRequest, "timer_paused_remaining cannot be negative")
			return
		}
		game.TimerPausedRemaining = remaining
		updates["timer_paused_remaining"] = remaining
	}
	if game.TimerStartedAt != nil && game.TimerPausedRemaining != nil {
		writeError(w, http.StatusBadRequest, "timer cannot be both running and paused")
		return
	}

	if len(updates) > 0 {
		if err := s.commitTransition(game, fromStatus, updates); err != nil {
			writeTransitionError(w, err)
			return
		}
	}
	s.recordEvent(game, "game_updated", eventPayload{
		GameCode:    game.Code,
		Status:      game.Status,
		RoundNumber: game.CurrentRound,
	})
	view, err := s.buildGameView(game)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleDeleteGame hard-deletes the game and everything it owns. The cascade
// is written out explicitly so the sqlite test driver behaves like postgres.
func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	game, err := s.loadGame(r.PathValue("code"))
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			writeError(w, http.StatusNotFound, errGameNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Model(&db.GameTask{}).Select("id").Where("game_id = ?", game.ID)
		if err := tx.Where("game_task_id IN (?)", taskIDs).Delete(&db.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("game_id = ?", game.ID).Delete(&db.GameTask{}).Error; err != nil {
			return err
		}
		if err := tx.Where("game_id = ?", game.ID).Delete(&db.GamePlayer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("game_id = ?", game.ID).Delete(&db.Event{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Game{}, game.ID).Error
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete game")
		return
	}
	log.Printf("game deleted code=%s", game.Code)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": game.Code})
}

type membershipRequest struct {
	PlayerID uint `json:"player_id"`
}

// handleJoinGame adds a player to the lobby. The insert rides on the
// (game, player) unique index, so a repeat join returns the existing row.
func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := readJSON(r.Body, &req); err != nil || req.PlayerID == 0 {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}
	game, err := s.loadGame(r.PathValue("code"))
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			writeError(w, http.StatusNotFound, errGameNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	if game.Status != statusLobby {
		writeError(w, http.StatusConflict, "game has already started")
		return
	}
	var player db.Player
	if err := s.db.First(&player, req.PlayerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, errPlayerNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load player")
		return
	}

	membership := db.GamePlayer{
		GameID:   game.ID,
		PlayerID: player.ID,
		JoinedAt: time.Now().UTC(),
	}
	result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&membership)
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "failed to join game")
		return
	}
	if result.RowsAffected > 0 {
		metrics.PlayersJoined.Inc()
		log.Printf("player joined code=%s player=%d name=%s", game.Code, player.ID, player.DisplayName)
		s.recordEvent(game, "player_joined", eventPayload{
			GameCode:   game.Code,
			PlayerID:   player.ID,
			PlayerName: player.DisplayName,
		})
	}
	// Re-read either way: on conflict the insert returns no row.
	var stored db.GamePlayer
	if err := s.db.Preload("Player").Preload("Player.Team").
		Where("game_id = ? AND player_id = ?", game.ID, player.ID).
		First(&stored).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to join game")
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleLeaveGame(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := readJSON(r.Body, &req); err != nil || req.PlayerID == 0 {
		writeError(w, http.StatusBadRequest, "player_id is required")
		return
	}
	game, err := s.loadGame(r.PathValue("code"))
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			writeError(w, http.StatusNotFound, errGameNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	result := s.db.Where("game_id = ? AND player_id = ?", game.ID, req.PlayerID).Delete(&db.GamePlayer{})
	if result.Error != nil {
		writeError(w, http.StatusInternalServerError, "failed to leave game")
		return
	}
	if result.RowsAffected == 0 {
		writeError(w, http.StatusNotFound, errPlayerNotFound.Error())
		return
	}
	s.recordEvent(game, "player_left", eventPayload{GameCode: game.Code, PlayerID: req.PlayerID})
	writeJSON(w, http.StatusOK, map[string]any{"left": req.PlayerID})
}

type assignTaskRequest struct {
	TaskID      uint `json:"task_id"`
	RoundNumber *int `json:"round_number"`
}

// handleAssignTask binds a task to a round, replacing any earlier choice for
// that round. Defaults to the round after the current one.
func (s *Server) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	var req assignTaskRequest
	if err := readJSON(r.Body, &req); err != nil || req.TaskID == 0 {
		writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}
	game, err := s.loadGame(r.PathValue("code"))
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			writeError(w, http.StatusNotFound, errGameNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	round := game.CurrentRound + 1
	if req.RoundNumber != nil {
		round = *req.RoundNumber
	}
	if round < 1 || round > game.TotalRounds {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("round_number must be between 1 and %d", game.TotalRounds))
		return
	}
	var task db.Task
	if err := s.db.First(&task, req.TaskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, errTaskNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}

	var gameTask db.GameTask
	err = s.db.Where("game_id = ? AND round_number = ?", game.ID, round).First(&gameTask).Error
	switch {
	case err == nil:
		gameTask.TaskID = task.ID
		err = s.db.Model(&gameTask).Update("task_id", task.ID).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		gameTask = db.GameTask{GameID: game.ID, TaskID: task.ID, RoundNumber: round}
		err = s.db.Create(&gameTask).Error
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to assign task")
		return
	}
	gameTask.Task = &task
	log.Printf("task assigned code=%s round=%d task=%d", game.Code, round, task.ID)
	s.recordEvent(game, "task_assigned", eventPayload{
		GameCode:    game.Code,
		RoundNumber: round,
		TaskID:      task.ID,
	})
	writeJSON(w, http.StatusOK, gameTask)
}
