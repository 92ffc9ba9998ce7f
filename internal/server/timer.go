package server

import (
	"errors"
	"net/http"
	"time"

	"wordwrangler/internal/db"
)

// The countdown is never ticked server-side. Every client derives the same
// remaining value from the persisted reference point, which keeps the timer
// correct across page reloads, disconnects and clock drift. Exactly one of
// timer_started_at / timer_paused_remaining is set while a round is running
// or paused; both nil means the full configured duration is still ahead.

// remainingSeconds computes how much of the round is left as of now.
func remainingSeconds(game *db.Game, now time.Time) int {
	if game.TimerStartedAt != nil {
		elapsed := int(now.Sub(*game.TimerStartedAt) / time.Second)
		remaining := game.TimerSeconds - elapsed
		if remaining < 0 {
			return 0
		}
		return remaining
	}
	if game.TimerPausedRemaining != nil {
		return *game.TimerPausedRemaining
	}
	return game.TimerSeconds
}

// startTimer starts or resumes the countdown. On resume the stored duration
// becomes "time left", so the remaining formula stays valid across any number
// of pause/resume cycles.
func startTimer(game *db.Game, now time.Time, updates map[string]any) {
	if game.TimerPausedRemaining != nil {
		game.TimerSeconds = *game.TimerPausedRemaining
		updates["timer_seconds"] = game.TimerSeconds
	}
	started := now
	game.TimerStartedAt = &started
	game.TimerPausedRemaining = nil
	updates["timer_started_at"] = started
	updates["timer_paused_remaining"] = nil
}

// pauseTimer freezes the countdown at its current remaining value.
func pauseTimer(game *db.Game, now time.Time, updates map[string]any) {
	remaining := remainingSeconds(game, now)
	game.TimerPausedRemaining = &remaining
	game.TimerStartedAt = nil
	updates["timer_paused_remaining"] = remaining
	updates["timer_started_at"] = nil
}

// clearTimer freezes the round entirely (end of round, end of game).
func clearTimer(game *db.Game, updates map[string]any) {
	game.TimerStartedAt = nil
	game.TimerPausedRemaining = nil
	updates["timer_started_at"] = nil
	updates["timer_paused_remaining"] = nil
}

// addTimerSeconds extends the countdown in place, running or not.
func addTimerSeconds(game *db.Game, seconds int, updates map[string]any) {
	if game.TimerPausedRemaining != nil {
		paused := *game.TimerPausedRemaining + seconds
		game.TimerPausedRemaining = &paused
		updates["timer_paused_remaining"] = paused
		return
	}
	game.TimerSeconds += seconds
	updates["timer_seconds"] = game.TimerSeconds
}

type timerRequest struct {
	Action  string `json:"action"`
	Seconds int    `json:"seconds"`
}

// handleTimer is the server-side form of the facilitator's timer controls.
// Timer writes are single-writer by contract, so they only condition on the
// game row still existing.
func (s *Server) handleTimer(w http.ResponseWriter, r *http.Request) {
	var req timerRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "action is required")
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

	now := time.Now().UTC()
	updates := map[string]any{}
	switch req.Action {
	case "start", "resume":
		if game.TimerStartedAt != nil {
			writeError(w, http.StatusConflict, "timer already running")
			return
		}
		startTimer(game, now, updates)
	case "pause":
		if game.TimerStartedAt == nil {
			writeError(w, http.StatusConflict, "timer is not running")
			return
		}
		pauseTimer(game, now, updates)
	case "add":
		if req.Seconds <= 0 {
			writeError(w, http.StatusBadRequest, "seconds must be positive")
			return
		}
		addTimerSeconds(game, req.Seconds, updates)
	default:
		writeError(w, http.StatusBadRequest, "unknown timer action")
		return
	}

	if err := s.db.Model(&db.Game{}).Where("id = ?", game.ID).Updates(updates).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update timer")
		return
	}
	s.recordEvent(game, "timer_updated", eventPayload{
		GameCode: game.Code,
		Reason:   req.Action,
		Count:    remainingSeconds(game, now),
	})
	view, err := s.buildGameView(game)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
