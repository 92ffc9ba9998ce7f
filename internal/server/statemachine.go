package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"wordwrangler/internal/db"
)

// The game status walks lobby → active → judging → leaderboard and then
// either loops back to active for the next round or proceeds to reflection →
// completed. Round number and timer fields always change inside the same
// transition write, so no client can observe a new round paired with an old
// timer.

type statusTransition struct {
	check func(s *Server, game *db.Game) error
	apply func(game *db.Game, now time.Time, updates map[string]any)
}

var statusTransitions = map[string]map[string]statusTransition{
	statusLobby: {
		statusActive: {
			check: func(s *Server, game *db.Game) error {
				var count int64
				if err := s.db.Model(&db.GamePlayer{}).Where("game_id = ?", game.ID).Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return errors.New("cannot start a game with no players")
				}
				return nil
			},
			apply: func(game *db.Game, now time.Time, updates map[string]any) {
				game.CurrentRound = 1
				updates["current_round"] = 1
				startTimer(game, now, updates)
			},
		},
	},
	statusActive: {
		statusJudging: {
			apply: func(game *db.Game, now time.Time, updates map[string]any) {
				clearTimer(game, updates)
			},
		},
	},
	statusJudging: {
		statusLeaderboard: {},
	},
	statusLeaderboard: {
		statusActive: {
			check: func(s *Server, game *db.Game) error {
				if game.CurrentRound >= game.TotalRounds {
					return fmt.Errorf("game only has %d rounds", game.TotalRounds)
				}
				return nil
			},
			apply: func(game *db.Game, now time.Time, updates map[string]any) {
				game.CurrentRound++
				updates["current_round"] = game.CurrentRound
				startTimer(game, now, updates)
			},
		},
		statusReflection: {
			check: func(s *Server, game *db.Game) error {
				if game.CurrentRound != game.TotalRounds {
					return errors.New("reflection only follows the final round")
				}
				return nil
			},
		},
	},
	statusReflection: {
		statusCompleted: {},
	},
}

// planTransition validates game → target and returns the field updates the
// transition implies (including "status"). Ending the game is always legal
// from any non-terminal state.
func (s *Server) planTransition(game *db.Game, target string, now time.Time) (map[string]any, error) {
	if !validStatus(target) {
		return nil, fmt.Errorf("unknown status %q", target)
	}
	if game.Status == statusCompleted {
		return nil, errors.New("game already completed")
	}
	updates := map[string]any{"status": target}
	if target == statusCompleted {
		clearTimer(game, updates)
		game.Status = target
		return updates, nil
	}
	transition, ok := statusTransitions[game.Status][target]
	if !ok {
		return nil, fmt.Errorf("cannot move from %s to %s", game.Status, target)
	}
	if transition.check != nil {
		if err := transition.check(s, game); err != nil {
			return nil, err
		}
	}
	if transition.apply != nil {
		transition.apply(game, now, updates)
	}
	game.Status = target
	return updates, nil
}

// commitTransition writes the planned updates, conditioned on the status the
// plan was made against. A concurrent transition loses the race cleanly.
func (s *Server) commitTransition(game *db.Game, fromStatus string, updates map[string]any) error {
	result := s.db.Model(&db.Game{}).
		Where("id = ? AND status = ?", game.ID, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errStateChanged
	}
	return nil
}

// nextStatus is the canonical progression used by the advance endpoint.
func nextStatus(game *db.Game) (string, error) {
	switch game.Status {
	case statusLobby:
		return statusActive, nil
	case statusActive:
		return statusJudging, nil
	case statusJudging:
		return statusLeaderboard, nil
	case statusLeaderboard:
		if game.CurrentRound < game.TotalRounds {
			return statusActive, nil
		}
		return statusReflection, nil
	case statusReflection:
		return statusCompleted, nil
	default:
		return "", errors.New("game already completed")
	}
}

// handleAdvance moves the game one step along the canonical progression.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	game, err := s.loadGame(r.PathValue("code"))
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			writeError(w, http.StatusNotFound, errGameNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}

	target, err := nextStatus(game)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err := s.transitionGame(game, target); err != nil {
		writeTransitionError(w, err)
		return
	}
	view, err := s.buildGameView(game)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// transitionGame plans, commits, records and broadcasts one transition.
func (s *Server) transitionGame(game *db.Game, target string) error {
	fromStatus := game.Status
	now := time.Now().UTC()
	updates, err := s.planTransition(game, target, now)
	if err != nil {
		return err
	}
	if err := s.commitTransition(game, fromStatus, updates); err != nil {
		return err
	}
	log.Printf("game advanced code=%s from=%s to=%s round=%d", game.Code, fromStatus, game.Status, game.CurrentRound)
	s.recordEvent(game, "game_updated", eventPayload{
		GameCode:    game.Code,
		Status:      game.Status,
		RoundNumber: game.CurrentRound,
	})
	return nil
}

func writeTransitionError(w http.ResponseWriter, err error) {
	if errors.Is(err, errStateChanged) {
		writeError(w, http.StatusConflict, errStateChanged.Error())
		return
	}
	writeError(w, http.StatusConflict, err.Error())
}
