package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"wordwrangler/internal/db"
)

type eventPayload struct {
	GameCode    string `json:"game_code,omitempty"`
	Status      string `json:"status,omitempty"`
	PlayerID    uint   `json:"player_id,omitempty"`
	PlayerName  string `json:"player,omitempty"`
	RoundNumber int    `json:"round_number,omitempty"`
	TaskID      uint   `json:"task_id,omitempty"`
	Points      int    `json:"points,omitempty"`
	Score       int    `json:"score,omitempty"`
	Count       int    `json:"count,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// recordEvent appends one row to the game's change feed and pushes it to
// websocket subscribers. The feed is additive to polling: readers that never
// see a push still converge by refetching game state.
func (s *Server) recordEvent(game *db.Game, eventType string, payload eventPayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	record := db.Event{
		GameID:  game.ID,
		Type:    eventType,
		Payload: raw,
	}
	if err := s.db.Create(&record).Error; err != nil {
		log.Printf("event persist failed code=%s type=%s error=%v", game.Code, eventType, err)
	}
	s.ws.Broadcast(game.Code, map[string]any{
		"type":    eventType,
		"payload": payload,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	game, err := s.loadGame(r.PathValue("code"))
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			writeError(w, http.StatusNotFound, errGameNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	var records []db.Event
	if err := s.db.Where("game_id = ?", game.ID).Order("id asc").Find(&records).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_code": game.Code,
		"events":    records,
	})
}
