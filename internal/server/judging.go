package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"wordwrangler/internal/db"
	"wordwrangler/internal/metrics"
)

const judgeCallTimeout = 30 * time.Second

var (
	fallbackJudgeQuote  = "The judge is speechless. Let's call it solid work."
	fallbackCohostQuote = "Technical difficulties in the judging booth, but I liked it."
)

// handleJudge runs the AI judge over every unjudged submission of the
// current round. The batch is sequential and tolerant: a failed call gets
// the neutral fallback score and the batch moves on. Submissions that
// already carry a score are skipped, so re-invoking is harmless.
func (s *Server) handleJudge(w http.ResponseWriter, r *http.Request) {
	game, err := s.loadGame(r.PathValue("code"))
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			writeError(w, http.StatusNotFound, errGameNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load game")
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

	// Flip to judging for the duration of the batch so polling clients show
	// "judging in progress", then put the prior status back.
	priorStatus := game.Status
	if priorStatus != statusJudging {
		if err := s.db.Model(&db.Game{}).Where("id = ?", game.ID).Update("status", statusJudging).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "failed to start judging")
			return
		}
		game.Status = statusJudging
		s.recordEvent(game, "game_updated", eventPayload{
			GameCode:    game.Code,
			Status:      statusJudging,
			RoundNumber: game.CurrentRound,
		})
	}

	var pending []db.Submission
	if err := s.db.Preload("Player").
		Where("game_task_id = ? AND ai_score IS NULL", gameTask.ID).
		Order("submitted_at asc").
		Find(&pending).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load submissions")
		return
	}

	judged := 0
	failed := 0
	for i := range pending {
		sub := &pending[i]
		playerName := "anonymous"
		if sub.Player != nil {
			playerName = sub.Player.DisplayName
		}

		ctx, cancel := context.WithTimeout(r.Context(), judgeCallTimeout)
		verdict, err := s.ai.JudgeSubmission(ctx, gameTask.Task, playerName, sub.Content)
		cancel()
		if err != nil {
			log.Printf("judge call failed code=%s round=%d player=%d error=%v", game.Code, game.CurrentRound, sub.PlayerID, err)
			metrics.JudgeFailures.Inc()
			verdict = &judgment{
				JudgeSays:  fallbackJudgeQuote,
				CohostSays: fallbackCohostQuote,
				Score:      fallbackJudgeScore,
			}
			failed++
		}

		if err := s.db.Model(sub).Updates(map[string]any{
			"ai_score":     verdict.Score,
			"judge_quote":  verdict.JudgeSays,
			"cohost_quote": verdict.CohostSays,
		}).Error; err != nil {
			log.Printf("judge store failed code=%s player=%d error=%v", game.Code, sub.PlayerID, err)
			continue
		}
		sub.AIScore = &verdict.Score
		sub.JudgeQuote = &verdict.JudgeSays
		sub.CohostQuote = &verdict.CohostSays

		if _, err := s.awardPoints(game.ID, sub.PlayerID, verdict.Score); err != nil {
			log.Printf("judge award failed code=%s player=%d error=%v", game.Code, sub.PlayerID, err)
		}
		metrics.Judgments.Inc()
		judged++
	}

	if priorStatus != statusJudging {
		if err := s.db.Model(&db.Game{}).Where("id = ?", game.ID).Update("status", priorStatus).Error; err != nil {
			writeError(w, http.StatusInternalServerError, "failed to finish judging")
			return
		}
		game.Status = priorStatus
		s.recordEvent(game, "game_updated", eventPayload{
			GameCode:    game.Code,
			Status:      priorStatus,
			RoundNumber: game.CurrentRound,
		})
	}

	log.Printf("judging complete code=%s round=%d judged=%d failed=%d", game.Code, game.CurrentRound, judged, failed)
	s.recordEvent(game, "round_judged", eventPayload{
		GameCode:    game.Code,
		RoundNumber: game.CurrentRound,
		Count:       judged,
	})

	all, err := s.submissionsForTask(gameTask.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load submissions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"round_number": game.CurrentRound,
		"judged":       judged,
		"failed":       failed,
		"submissions":  all,
	})
}
