package server

import (
	"net/http"
	"testing"
)

// TestFullGameFlow walks a two-round game end to end the way the three
// client roles would drive it.
func TestFullGameFlow(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.ai = &stubAI{}

	seedTask(t, srv, "haiku")
	seedTask(t, srv, "slogan")
	code := createGame(t, ts, 2, 60)

	adaID := createPlayer(t, ts, "Ada")
	benID := createPlayer(t, ts, "Ben")
	joinGame(t, ts, code, adaID)
	joinGame(t, ts, code, benID)

	// Start: active, round 1, timer running.
	body := advance(t, ts, code)
	if body["status"] != "active" || body["current_round"].(float64) != 1 {
		t.Fatalf("expected active round 1, got %v round %v", body["status"], body["current_round"])
	}
	if body["timer_started_at"] == nil {
		t.Fatalf("start must set timer_started_at")
	}

	// Both players submit.
	for _, id := range []uint{adaID, benID} {
		resp := submit(t, ts, code, id, "a quick entry")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("submit: expected status %d, got %d", http.StatusOK, resp.StatusCode)
		}
	}

	// End round: judging, timer frozen.
	body = advance(t, ts, code)
	if body["status"] != "judging" {
		t.Fatalf("expected judging, got %v", body["status"])
	}
	if body["timer_started_at"] != nil || body["timer_paused_remaining"] != nil {
		t.Fatalf("judging must freeze the timer")
	}

	// Human awards: Ada 5, Ben 3.
	for playerID, points := range map[uint]int{adaID: 5, benID: 3} {
		resp := doRequest(t, ts, http.MethodPost, "/games/"+code+"/award", map[string]any{
			"player_id": playerID,
			"points":    points,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("award: expected status %d, got %d", http.StatusOK, resp.StatusCode)
		}
	}

	// Finish judging: leaderboard reads A:5 rank 1, B:3 rank 2.
	body = advance(t, ts, code)
	if body["status"] != "leaderboard" {
		t.Fatalf("expected leaderboard, got %v", body["status"])
	}
	resp := doRequest(t, ts, http.MethodGet, "/games/"+code+"/leaderboard", nil)
	board := decodeBody(t, resp)
	entries := board["players"].([]any)
	first := entries[0].(map[string]any)
	second := entries[1].(map[string]any)
	if first["display_name"] != "Ada" || first["score"].(float64) != 5 || first["rank"].(float64) != 1 {
		t.Fatalf("expected Ada 5 rank 1, got %v", first)
	}
	if second["display_name"] != "Ben" || second["score"].(float64) != 3 || second["rank"].(float64) != 2 {
		t.Fatalf("expected Ben 3 rank 2, got %v", second)
	}

	// Next round: active, round 2, fresh timer.
	body = advance(t, ts, code)
	if body["status"] != "active" || body["current_round"].(float64) != 2 {
		t.Fatalf("expected active round 2, got %v round %v", body["status"], body["current_round"])
	}

	submit(t, ts, code, adaID, "round two entry")
	advance(t, ts, code) // judging
	advance(t, ts, code) // leaderboard

	// current_round == total_rounds: next step is reflection, not round 3.
	body = advance(t, ts, code)
	if body["status"] != "reflection" {
		t.Fatalf("expected reflection, got %v", body["status"])
	}

	resp = doRequest(t, ts, http.MethodPost, "/games/"+code+"/reflection", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reflection: expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	body = advance(t, ts, code)
	if body["status"] != "completed" {
		t.Fatalf("expected completed, got %v", body["status"])
	}
}
