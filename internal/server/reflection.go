package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"wordwrangler/internal/db"
	"wordwrangler/internal/metrics"
)

const reflectionCallTimeout = 90 * time.Second

func (s *Server) handleGetReflection(w http.ResponseWriter, r *http.Request) {
	game, err := s.loadGame(r.PathValue("code"))
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			writeError(w, http.StatusNotFound, errGameNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	if len(game.Reflection) == 0 {
		writeError(w, http.StatusNotFound, "no reflection generated yet")
		return
	}
	writeJSON(w, http.StatusOK, json.RawMessage(game.Reflection))
}

// handleGenerateReflection builds the end-of-game commentary from the full
// submission history. The result is written once: a repeat call serves the
// stored payload instead of regenerating.
func (s *Server) handleGenerateReflection(w http.ResponseWriter, r *http.Request) {
	game, err := s.loadGame(r.PathValue("code"))
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			writeError(w, http.StatusNotFound, errGameNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	if len(game.Reflection) > 0 {
		writeJSON(w, http.StatusOK, json.RawMessage(game.Reflection))
		return
	}
	switch game.Status {
	case statusLeaderboard, statusReflection, statusCompleted:
	default:
		writeError(w, http.StatusConflict, "reflection is only available at the end of the game")
		return
	}

	rounds, err := s.gatherRounds(game)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load submissions")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), reflectionCallTimeout)
	defer cancel()
	payload, err := s.ai.GenerateReflection(ctx, rounds)
	if err != nil {
		log.Printf("reflection failed code=%s error=%v", game.Code, err)
		writeError(w, http.StatusInternalServerError, "failed to generate reflection")
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate reflection")
		return
	}
	if err := s.db.Model(&db.Game{}).Where("id = ?", game.ID).Update("reflection", raw).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store reflection")
		return
	}
	game.Reflection = raw
	metrics.Reflections.Inc()
	log.Printf("reflection stored code=%s insights=%d", game.Code, len(payload.Insights))
	s.recordEvent(game, "reflection_ready", eventPayload{GameCode: game.Code})
	writeJSON(w, http.StatusOK, payload)
}

// gatherRounds collects every round's task and submissions in order, the
// reflection generator's whole input.
func (s *Server) gatherRounds(game *db.Game) ([]reflectionRound, error) {
	var gameTasks []db.GameTask
	if err := s.db.Preload("Task").
		Where("game_id = ?", game.ID).
		Order("round_number asc").
		Find(&gameTasks).Error; err != nil {
		return nil, err
	}
	rounds := make([]reflectionRound, 0, len(gameTasks))
	for i := range gameTasks {
		entries, err := s.submissionsForTask(gameTasks[i].ID)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, reflectionRound{
			RoundNumber: gameTasks[i].RoundNumber,
			Task:        gameTasks[i].Task,
			Submissions: entries,
		})
	}
	return rounds, nil
}
