package server

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"wordwrangler/internal/config"
	"wordwrangler/internal/db"
)

func TestAwardRequiresJudgingStatus(t *testing.T) {
	srv, ts := newTestServer(t)

	seedTask(t, srv, "haiku")
	seedTask(t, srv, "slogan")
	code := createGame(t, ts, 2, 60)
	playerID := createPlayer(t, ts, "Ada")
	joinGame(t, ts, code, playerID)
	advance(t, ts, code) // active

	resp := doRequest(t, ts, http.MethodPost, "/games/"+code+"/award", map[string]any{
		"player_id": playerID,
		"points":    5,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("award while active: expected status %d, got %d", http.StatusConflict, resp.StatusCode)
	}
}

func TestAwardValidation(t *testing.T) {
	srv, ts := newTestServer(t)

	seedTask(t, srv, "haiku")
	seedTask(t, srv, "slogan")
	code := createGame(t, ts, 2, 60)
	playerID := createPlayer(t, ts, "Ada")
	joinGame(t, ts, code, playerID)
	advance(t, ts, code) // active
	advance(t, ts, code) // judging

	resp := doRequest(t, ts, http.MethodPost, "/games/"+code+"/award", map[string]any{
		"player_id": playerID,
		"points":    11,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("out of range: expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	resp = doRequest(t, ts, http.MethodPost, "/games/"+code+"/award", map[string]any{
		"player_id": playerID,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing points: expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	stranger := createPlayer(t, ts, "Mallory")
	resp = doRequest(t, ts, http.MethodPost, "/games/"+code+"/award", map[string]any{
		"player_id": stranger,
		"points":    5,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("non-member: expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestAwardAccumulates(t *testing.T) {
	srv, ts := newTestServer(t)

	seedTask(t, srv, "haiku")
	seedTask(t, srv, "slogan")
	code := createGame(t, ts, 2, 60)
	playerID := createPlayer(t, ts, "Ada")
	joinGame(t, ts, code, playerID)
	advance(t, ts, code) // active
	advance(t, ts, code) // judging

	for _, points := range []int{5, 3} {
		resp := doRequest(t, ts, http.MethodPost, "/games/"+code+"/award", map[string]any{
			"player_id": playerID,
			"points":    points,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("award: expected status %d, got %d", http.StatusOK, resp.StatusCode)
		}
	}

	var entry db.GamePlayer
	if err := srv.db.Where("player_id = ?", playerID).First(&entry).Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if entry.Score != 8 {
		t.Fatalf("expected score 8, got %d", entry.Score)
	}
}

func TestConcurrentAwardsLoseNoUpdates(t *testing.T) {
	cfg := config.Default()
	// Give the optimistic lock room to retry under deliberate contention.
	cfg.AwardMaxAttempts = 50
	srv := newTestServerWithConfig(t, cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	seedTask(t, srv, "haiku")
	seedTask(t, srv, "slogan")
	code := createGame(t, ts, 2, 60)
	playerID := createPlayer(t, ts, "Ada")
	joinGame(t, ts, code, playerID)
	advance(t, ts, code) // active
	advance(t, ts, code) // judging

	game, err := srv.loadGame(code)
	if err != nil {
		t.Fatalf("load game: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := srv.awardPoints(game.ID, playerID, 1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("award failed under contention: %v", err)
	}

	var entry db.GamePlayer
	if err := srv.db.Where("player_id = ?", playerID).First(&entry).Error; err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	if entry.Score != writers {
		t.Fatalf("lost updates: expected score %d, got %d", writers, entry.Score)
	}
}

func TestCASRetryExhaustion(t *testing.T) {
	calls := 0
	err := casRetry(3, func() (bool, error) {
		calls++
		return false, nil
	})
	if err != errRetriesExhausted {
		t.Fatalf("expected retry exhaustion, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}
