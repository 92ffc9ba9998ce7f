package server

import (
	"errors"
	"log"
	"net/http"

	"wordwrangler/internal/db"
	"wordwrangler/internal/metrics"

	"gorm.io/gorm"
)

// casRetry runs op until it reports success or attempts are used up.
// op returns done=false when a concurrent writer invalidated the value it
// read; each such loss is counted before the fresh read.
func casRetry(attempts int, op func() (bool, error)) error {
	for i := 0; i < attempts; i++ {
		done, err := op()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		metrics.AwardConflicts.Inc()
	}
	return errRetriesExhausted
}

// awardPoints adds points to a player's ledger entry under optimistic
// locking: the write only lands if the score is still the value just read.
func (s *Server) awardPoints(gameID, playerID uint, points int) (int, error) {
	var final int
	err := casRetry(s.cfg.AwardMaxAttempts, func() (bool, error) {
		var entry db.GamePlayer
		err := s.db.Where("game_id = ? AND player_id = ?", gameID, playerID).First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, errPlayerNotFound
		}
		if err != nil {
			return false, err
		}
		result := s.db.Model(&db.GamePlayer{}).
			Where("id = ? AND score = ?", entry.ID, entry.Score).
			Update("score", entry.Score+points)
		if result.Error != nil {
			return false, result.Error
		}
		if result.RowsAffected == 0 {
			return false, nil
		}
		final = entry.Score + points
		return true, nil
	})
	return final, err
}

type awardRequest struct {
	PlayerID uint `json:"player_id"`
	Points   *int `json:"points"`
}

// handleAward is the human scoring path: the facilitator grants 0-10 points
// to one player while the round is being judged.
func (s *Server) handleAward(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := readJSON(r.Body, &req); err != nil || req.PlayerID == 0 || req.Points == nil {
		writeError(w, http.StatusBadRequest, "player_id and points are required")
		return
	}
	if *req.Points < 0 || *req.Points > 10 {
		writeError(w, http.StatusBadRequest, "points must be between 0 and 10")
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
	if game.Status != statusJudging {
		writeError(w, http.StatusConflict, "points can only be awarded while judging")
		return
	}

	score, err := s.awardPoints(game.ID, req.PlayerID, *req.Points)
	if err != nil {
		if errors.Is(err, errPlayerNotFound) {
			writeError(w, http.StatusNotFound, errPlayerNotFound.Error())
			return
		}
		if errors.Is(err, errRetriesExhausted) {
			log.Printf("award gave up code=%s player=%d points=%d", game.Code, req.PlayerID, *req.Points)
			writeError(w, http.StatusInternalServerError, errRetriesExhausted.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to award points")
		return
	}
	s.recordEvent(game, "score_awarded", eventPayload{
		GameCode: game.Code,
		PlayerID: req.PlayerID,
		Points:   *req.Points,
		Score:    score,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"player_id": req.PlayerID,
		"points":    *req.Points,
		"score":     score,
	})
}
