package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"wordwrangler/internal/db"
	"wordwrangler/internal/metrics"

	"gorm.io/gorm"
)

type submitRequest struct {
	PlayerID uint   `json:"player_id"`
	Content  string `json:"content"`
}

// handleCreateSubmission stores a player's response for the current round.
// One row per (round, player): a resubmit overwrites content and timestamp
// but leaves any judge verdict in place.
func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := readJSON(r.Body, &req); err != nil || req.PlayerID == 0 {
		writeError(w, http.StatusBadRequest, "player_id and content are required")
		return
	}
	content, err := validateContent(req.Content)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
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
	if game.Status != statusActive {
		writeError(w, http.StatusConflict, "round is not accepting submissions")
		return
	}

	var membership db.GamePlayer
	err = s.db.Where("game_id = ? AND player_id = ?", game.ID, req.PlayerID).First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, errPlayerNotFound.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load player")
		return
	}

	gameTask, err := s.currentGameTask(game)
	if err != nil {
		if errors.Is(err, errNoActiveTask) {
			writeError(w, http.StatusConflict, errNoActiveTask.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}

	now := time.Now().UTC()
	var submission db.Submission
	err = s.db.Where("game_task_id = ? AND player_id = ?", gameTask.ID, req.PlayerID).First(&submission).Error
	switch {
	case err == nil:
		submission.Content = content
		submission.SubmittedAt = now
		err = s.db.Model(&submission).Updates(map[string]any{
			"content":      content,
			"submitted_at": now,
		}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		submission = db.Submission{
			GameTaskID:  gameTask.ID,
			PlayerID:    req.PlayerID,
			Content:     content,
			SubmittedAt: now,
		}
		err = s.db.Create(&submission).Error
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store submission")
		return
	}
	metrics.Submissions.Inc()

	var submitted int64
	if err := s.db.Model(&db.Submission{}).Where("game_task_id = ?", gameTask.ID).Count(&submitted).Error; err == nil {
		s.recordEvent(game, "submission_received", eventPayload{
			GameCode:    game.Code,
			PlayerID:    req.PlayerID,
			RoundNumber: game.CurrentRound,
			Count:       int(submitted),
		})
	}
	log.Printf("submission stored code=%s round=%d player=%d chars=%d", game.Code, game.CurrentRound, req.PlayerID, len(content))
	writeJSON(w, http.StatusOK, submission)
}

// currentGameTask resolves the task bound to the game's current round.
func (s *Server) currentGameTask(game *db.Game) (*db.GameTask, error) {
	if game.CurrentRound < 1 {
		return nil, errNoActiveTask
	}
	var gameTask db.GameTask
	err := s.db.Preload("Task").
		Where("game_id = ? AND round_number = ?", game.ID, game.CurrentRound).
		First(&gameTask).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNoActiveTask
	}
	if err != nil {
		return nil, err
	}
	return &gameTask, nil
}

type roundSubmissions struct {
	RoundNumber int             `json:"round_number"`
	Task        *db.Task        `json:"task"`
	Submissions []db.Submission `json:"submissions"`
}

// handleListSubmissions returns the current round's submissions by default,
// a specific round with ?round=N, or every round grouped with ?all=true.
func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	game, err := s.loadGame(r.PathValue("code"))
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			writeError(w, http.StatusNotFound, errGameNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}

	if r.URL.Query().Get("all") == "true" {
		var gameTasks []db.GameTask
		if err := s.db.Preload("Task").
			Where("game_id = ?", game.ID).
			Order("round_number asc").
			Find(&gameTasks).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load submissions")
			return
		}
		rounds := make([]roundSubmissions, 0, len(gameTasks))
		for i := range gameTasks {
			entries, err := s.submissionsForTask(gameTasks[i].ID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load submissions")
				return
			}
			rounds = append(rounds, roundSubmissions{
				RoundNumber: gameTasks[i].RoundNumber,
				Task:        gameTasks[i].Task,
				Submissions: entries,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"rounds": rounds})
		return
	}

	round := game.CurrentRound
	if raw := r.URL.Query().Get("round"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			writeError(w, http.StatusBadRequest, "round must be a positive integer")
			return
		}
		round = value
	}
	if round < 1 || round > game.TotalRounds {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("round must be between 1 and %d", game.TotalRounds))
		return
	}

	var gameTask db.GameTask
	err = s.db.Preload("Task").
		Where("game_id = ? AND round_number = ?", game.ID, round).
		First(&gameTask).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusOK, roundSubmissions{RoundNumber: round, Submissions: []db.Submission{}})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load submissions")
		return
	}
	entries, err := s.submissionsForTask(gameTask.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load submissions")
		return
	}
	writeJSON(w, http.StatusOK, roundSubmissions{
		RoundNumber: round,
		Task:        gameTask.Task,
		Submissions: entries,
	})
}

func (s *Server) submissionsForTask(gameTaskID uint) ([]db.Submission, error) {
	entries := []db.Submission{}
	err := s.db.Preload("Player").
		Where("game_task_id = ?", gameTaskID).
		Order("submitted_at asc").
		Find(&entries).Error
	return entries, err
}
