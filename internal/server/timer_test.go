package server

import (
	"net/http"
	"testing"
	"time"

	"wordwrangler/internal/db"
)

func TestRemainingSecondsStates(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	game := &db.Game{TimerSeconds: 60}
	if got := remainingSeconds(game, now); got != 60 {
		t.Fatalf("not started: expected 60, got %d", got)
	}

	started := now.Add(-25 * time.Second)
	game.TimerStartedAt = &started
	if got := remainingSeconds(game, now); got != 35 {
		t.Fatalf("running: expected 35, got %d", got)
	}

	started = now.Add(-90 * time.Second)
	game.TimerStartedAt = &started
	if got := remainingSeconds(game, now); got != 0 {
		t.Fatalf("expired: expected 0, got %d", got)
	}

	paused := 42
	game.TimerStartedAt = nil
	game.TimerPausedRemaining = &paused
	if got := remainingSeconds(game, now); got != 42 {
		t.Fatalf("paused: expected 42, got %d", got)
	}
}

func TestPauseResumeKeepsRemaining(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	game := &db.Game{TimerSeconds: 60}

	startTimer(game, now, map[string]any{})
	pauseAt := now.Add(15 * time.Second)
	pauseTimer(game, pauseAt, map[string]any{})
	if game.TimerPausedRemaining == nil || *game.TimerPausedRemaining != 45 {
		t.Fatalf("expected 45 paused remaining, got %v", game.TimerPausedRemaining)
	}
	if game.TimerStartedAt != nil {
		t.Fatalf("pause must clear timer_started_at")
	}

	// How long the pause lasted must not matter.
	resumeAt := pauseAt.Add(10 * time.Minute)
	startTimer(game, resumeAt, map[string]any{})
	if game.TimerSeconds != 45 {
		t.Fatalf("resume must rewrite duration to remaining, got %d", game.TimerSeconds)
	}
	if game.TimerPausedRemaining != nil {
		t.Fatalf("resume must clear timer_paused_remaining")
	}
	if got := remainingSeconds(game, resumeAt); got != 45 {
		t.Fatalf("expected 45 remaining right after resume, got %d", got)
	}
}

func TestAddTimerSeconds(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	game := &db.Game{TimerSeconds: 60}
	startTimer(game, now, map[string]any{})
	addTimerSeconds(game, 30, map[string]any{})
	if got := remainingSeconds(game, now.Add(10*time.Second)); got != 80 {
		t.Fatalf("running add: expected 80, got %d", got)
	}

	paused := 20
	game = &db.Game{TimerSeconds: 60, TimerPausedRemaining: &paused}
	addTimerSeconds(game, 30, map[string]any{})
	if game.TimerPausedRemaining == nil || *game.TimerPausedRemaining != 50 {
		t.Fatalf("paused add: expected 50, got %v", game.TimerPausedRemaining)
	}
}

func TestTimerEndpoint(t *testing.T) {
	srv, ts := newTestServer(t)

	code := createGame(t, ts, 2, 60)

	resp := doRequest(t, ts, http.MethodPost, "/games/"+code+"/timer", map[string]any{"action": "start"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["timer_started_at"] == nil {
		t.Fatalf("start must set timer_started_at")
	}

	// Double start is a conflict.
	resp = doRequest(t, ts, http.MethodPost, "/games/"+code+"/timer", map[string]any{"action": "start"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double start: expected status %d, got %d", http.StatusConflict, resp.StatusCode)
	}

	// Backdate the start so the pause lands mid-countdown without sleeping.
	game, err := srv.loadGame(code)
	if err != nil {
		t.Fatalf("load game: %v", err)
	}
	backdated := time.Now().UTC().Add(-20 * time.Second)
	if err := srv.db.Model(&db.Game{}).Where("id = ?", game.ID).Update("timer_started_at", backdated).Error; err != nil {
		t.Fatalf("backdate timer: %v", err)
	}

	resp = doRequest(t, ts, http.MethodPost, "/games/"+code+"/timer", map[string]any{"action": "pause"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pause: expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body = decodeBody(t, resp)
	remaining := int(body["timer_remaining"].(float64))
	if remaining < 38 || remaining > 40 {
		t.Fatalf("expected about 40 seconds left, got %d", remaining)
	}
	if body["timer_started_at"] != nil {
		t.Fatalf("pause must clear timer_started_at")
	}

	resp = doRequest(t, ts, http.MethodPost, "/games/"+code+"/timer", map[string]any{"action": "pause"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("pause while paused: expected status %d, got %d", http.StatusConflict, resp.StatusCode)
	}

	resp = doRequest(t, ts, http.MethodPost, "/games/"+code+"/timer", map[string]any{"action": "resume"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resume: expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["timer_paused_remaining"] != nil {
		t.Fatalf("resume must clear timer_paused_remaining")
	}
	resumed := int(body["timer_seconds"].(float64))
	if resumed != remaining {
		t.Fatalf("resume must adopt the paused remaining (%d), got %d", remaining, resumed)
	}

	resp = doRequest(t, ts, http.MethodPost, "/games/"+code+"/timer", map[string]any{"action": "add", "seconds": 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("add zero: expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	resp = doRequest(t, ts, http.MethodPost, "/games/"+code+"/timer", map[string]any{"action": "warp"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown action: expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestPatchTimerFieldExclusivity(t *testing.T) {
	_, ts := newTestServer(t)

	code := createGame(t, ts, 2, 60)
	resp := doRequest(t, ts, http.MethodPatch, "/games/"+code, map[string]any{
		"timer_started_at":       time.Now().UTC().Format(time.RFC3339),
		"timer_paused_remaining": 30,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}
