package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"wordwrangler/internal/config"
	"wordwrangler/internal/db"

	"github.com/google/uuid"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := newTestServerWithConfig(t, config.Default())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func newTestServerWithConfig(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	conn, err := db.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("test db handle: %v", err)
	}
	// One connection keeps the in-memory sqlite file alive and serializes
	// writers the way a real server's pool would under contention.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return New(conn, cfg)
}

type stubAI struct {
	judge     func(task *db.Task, player, content string) (*judgment, error)
	reflect   func(rounds []reflectionRound) (*reflectionPayload, error)
	judgeCall int
}

func (s *stubAI) JudgeSubmission(ctx context.Context, task *db.Task, player, content string) (*judgment, error) {
	s.judgeCall++
	if s.judge == nil {
		return &judgment{JudgeSays: "fine work", CohostSays: "loved it", Score: 4}, nil
	}
	return s.judge(task, player, content)
}

func (s *stubAI) GenerateReflection(ctx context.Context, rounds []reflectionRound) (*reflectionPayload, error) {
	if s.reflect == nil {
		return &reflectionPayload{
			OpeningObservation: "a lively game",
			Insights:           []reflectionInsight{{Title: "brevity", Observation: "short answers won", QuestionForTeam: "why?"}},
			ClosingLine:        "see you next time",
		}, nil
	}
	return s.reflect(rounds)
}

func createGame(t *testing.T, ts *httptest.Server, rounds, timerSeconds int) string {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/games", map[string]any{
		"total_rounds":  rounds,
		"timer_seconds": timerSeconds,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	return body["code"].(string)
}

func createPlayer(t *testing.T, ts *httptest.Server, name string) uint {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/players", map[string]any{
		"display_name": name,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	return uint(body["id"].(float64))
}

func joinGame(t *testing.T, ts *httptest.Server, code string, playerID uint) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/games/"+code+"/join", map[string]any{
		"player_id": playerID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func seedTask(t *testing.T, srv *Server, title string) uint {
	t.Helper()
	task := db.Task{
		Title:                title,
		Description:          "write something about " + title,
		SuggestedTimeSeconds: 180,
	}
	if err := srv.db.Create(&task).Error; err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task.ID
}

func advance(t *testing.T, ts *httptest.Server, code string) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/games/"+code+"/advance", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("advance: expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	return decodeBody(t, resp)
}

func submit(t *testing.T, ts *httptest.Server, code string, playerID uint, content string) *http.Response {
	t.Helper()
	return doRequest(t, ts, http.MethodPost, "/games/"+code+"/submissions", map[string]any{
		"player_id": playerID,
		"content":   content,
	})
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestCreateGameDefaults(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodPost, "/games", map[string]any{})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "lobby" {
		t.Fatalf("expected lobby status, got %v", body["status"])
	}
	if body["total_rounds"].(float64) != 5 || body["timer_seconds"].(float64) != 180 {
		t.Fatalf("expected defaults 5/180, got %v/%v", body["total_rounds"], body["timer_seconds"])
	}
	code := body["code"].(string)
	if len(code) != 6 {
		t.Fatalf("expected 6-char code, got %q", code)
	}
}

func TestCreateGameRejectsBadRounds(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodPost, "/games", map[string]any{"total_rounds": 99})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestGetGameNotFound(t *testing.T) {
	_, ts := newTestServer(t)

	resp := doRequest(t, ts, http.MethodGet, "/games/ZZZZZZ", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}

func TestListGamesStatusFilter(t *testing.T) {
	_, ts := newTestServer(t)

	createGame(t, ts, 2, 60)
	createGame(t, ts, 3, 60)

	resp := doRequest(t, ts, http.MethodGet, "/games?status=lobby", nil)
	body := decodeBody(t, resp)
	games := body["games"].([]any)
	if len(games) != 2 {
		t.Fatalf("expected 2 lobby games, got %d", len(games))
	}
	first := games[0].(map[string]any)
	if _, ok := first["player_count"]; !ok {
		t.Fatalf("expected player_count in listing")
	}

	resp = doRequest(t, ts, http.MethodGet, "/games?status=completed", nil)
	body = decodeBody(t, resp)
	if len(body["games"].([]any)) != 0 {
		t.Fatalf("expected no completed games")
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	srv, ts := newTestServer(t)

	code := createGame(t, ts, 2, 60)
	playerID := createPlayer(t, ts, "Ada")

	joinGame(t, ts, code, playerID)
	joinGame(t, ts, code, playerID)

	var count int64
	if err := srv.db.Model(&db.GamePlayer{}).Where("player_id = ?", playerID).Count(&count).Error; err != nil {
		t.Fatalf("count memberships: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 membership row, got %d", count)
	}
}

func TestJoinAfterStartRejected(t *testing.T) {
	srv, ts := newTestServer(t)

	seedTask(t, srv, "haiku")
	seedTask(t, srv, "slogan")
	code := createGame(t, ts, 2, 60)
	playerID := createPlayer(t, ts, "Ada")
	joinGame(t, ts, code, playerID)
	advance(t, ts, code)

	late := createPlayer(t, ts, "Ben")
	resp := doRequest(t, ts, http.MethodPost, "/games/"+code+"/join", map[string]any{
		"player_id": late,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, resp.StatusCode)
	}
}

func TestDeleteGameCascades(t *testing.T) {
	srv, ts := newTestServer(t)

	seedTask(t, srv, "haiku")
	seedTask(t, srv, "slogan")
	code := createGame(t, ts, 2, 60)
	playerID := createPlayer(t, ts, "Ada")
	joinGame(t, ts, code, playerID)
	advance(t, ts, code)
	submit(t, ts, code, playerID, "five syllables here")

	resp := doRequest(t, ts, http.MethodDelete, "/games/"+code, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	for name, model := range map[string]any{
		"games":        &db.Game{},
		"game_players": &db.GamePlayer{},
		"game_tasks":   &db.GameTask{},
		"submissions":  &db.Submission{},
		"events":       &db.Event{},
	} {
		var count int64
		if err := srv.db.Model(model).Count(&count).Error; err != nil {
			t.Fatalf("count %s: %v", name, err)
		}
		if count != 0 {
			t.Fatalf("expected %s to be empty after delete, found %d rows", name, count)
		}
	}

	var players int64
	if err := srv.db.Model(&db.Player{}).Count(&players).Error; err != nil {
		t.Fatalf("count players: %v", err)
	}
	if players != 1 {
		t.Fatalf("player identity should survive game deletion")
	}
}

func TestPatchGameRejectsUnknownField(t *testing.T) {
	_, ts := newTestServer(t)

	code := createGame(t, ts, 2, 60)
	resp := doRequest(t, ts, http.MethodPatch, "/games/"+code, map[string]any{"nickname": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	resp = doRequest(t, ts, http.MethodPatch, "/games/"+code, map[string]any{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status %d for empty patch, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}
