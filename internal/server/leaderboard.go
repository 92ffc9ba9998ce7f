package server

import (
	"errors"
	"net/http"

	"wordwrangler/internal/db"
)

// Leaderboards are never stored: every request recomputes from the score
// ledger. Ranks are competition style (tied scores share a rank, numbering
// continues at 1,2,2,4), display order among ties is join order.

type leaderboardEntry struct {
	Rank        int      `json:"rank"`
	PlayerID    uint     `json:"player_id"`
	DisplayName string   `json:"display_name"`
	Avatar      *string  `json:"avatar"`
	Team        *db.Team `json:"team,omitempty"`
	Score       int      `json:"score"`
}

type teamStanding struct {
	Rank  int    `json:"rank"`
	Team  string `json:"team"`
	Score int    `json:"score"`
}

func (s *Server) handleGameLeaderboard(w http.ResponseWriter, r *http.Request) {
	game, err := s.loadGame(r.PathValue("code"))
	if err != nil {
		if errors.Is(err, errGameNotFound) {
			writeError(w, http.StatusNotFound, errGameNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load game")
		return
	}

	var members []db.GamePlayer
	if err := s.db.Preload("Player").Preload("Player.Team").
		Where("game_id = ?", game.ID).
		Order("score desc, joined_at asc").
		Find(&members).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	entries := make([]leaderboardEntry, 0, len(members))
	teamScores := map[string]int{}
	for i, member := range members {
		entry := leaderboardEntry{
			Rank:     i + 1,
			PlayerID: member.PlayerID,
			Score:    member.Score,
		}
		if i > 0 && member.Score == members[i-1].Score {
			entry.Rank = entries[i-1].Rank
		}
		if member.Player != nil {
			entry.DisplayName = member.Player.DisplayName
			entry.Avatar = member.Player.Avatar
			entry.Team = member.Player.Team
			if member.Player.Team != nil {
				teamScores[member.Player.Team.Name] += member.Score
			}
		}
		entries = append(entries, entry)
	}

	response := map[string]any{
		"game_code": game.Code,
		"players":   entries,
	}
	if len(teamScores) > 0 {
		response["teams"] = rankTeams(teamScores)
	}
	writeJSON(w, http.StatusOK, response)
}

func rankTeams(scores map[string]int) []teamStanding {
	standings := make([]teamStanding, 0, len(scores))
	for name, score := range scores {
		standings = append(standings, teamStanding{Team: name, Score: score})
	}
	// Insertion sort keeps ties in name order for a stable payload.
	for i := 1; i < len(standings); i++ {
		for j := i; j > 0; j-- {
			if standings[j].Score > standings[j-1].Score ||
				(standings[j].Score == standings[j-1].Score && standings[j].Team < standings[j-1].Team) {
				standings[j], standings[j-1] = standings[j-1], standings[j]
			} else {
				break
			}
		}
	}
	for i := range standings {
		standings[i].Rank = i + 1
		if i > 0 && standings[i].Score == standings[i-1].Score {
			standings[i].Rank = standings[i-1].Rank
		}
	}
	return standings
}

type allTimeRow struct {
	PlayerID    uint `json:"player_id"`
	TotalScore  int  `json:"total_score"`
	GamesPlayed int  `json:"games_played"`
}

type allTimeEntry struct {
	Rank         int      `json:"rank"`
	PlayerID     uint     `json:"player_id"`
	DisplayName  string   `json:"display_name"`
	Avatar       *string  `json:"avatar"`
	Team         *db.Team `json:"team,omitempty"`
	TotalScore   int      `json:"total_score"`
	GamesPlayed  int      `json:"games_played"`
	AverageScore float64  `json:"average_score"`
}

// handlePlayerLeaderboard aggregates scores across completed games only, so
// an in-progress game never moves the all-time board.
func (s *Server) handlePlayerLeaderboard(w http.ResponseWriter, r *http.Request) {
	var rows []allTimeRow
	err := s.db.Model(&db.GamePlayer{}).
		Select("game_players.player_id as player_id, SUM(game_players.score) as total_score, COUNT(*) as games_played").
		Joins("JOIN games ON games.id = game_players.game_id AND games.status = ?", statusCompleted).
		Group("game_players.player_id").
		Order("total_score desc").
		Scan(&rows).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	entries := make([]allTimeEntry, 0, len(rows))
	for i, row := range rows {
		entry := allTimeEntry{
			Rank:        i + 1,
			PlayerID:    row.PlayerID,
			TotalScore:  row.TotalScore,
			GamesPlayed: row.GamesPlayed,
		}
		if i > 0 && row.TotalScore == rows[i-1].TotalScore {
			entry.Rank = entries[i-1].Rank
		}
		if row.GamesPlayed > 0 {
			entry.AverageScore = float64(row.TotalScore) / float64(row.GamesPlayed)
		}
		var player db.Player
		if err := s.db.Preload("Team").First(&player, row.PlayerID).Error; err == nil {
			entry.DisplayName = player.DisplayName
			entry.Avatar = player.Avatar
			entry.Team = player.Team
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": entries})
}

type teamAllTimeRow struct {
	TeamID      uint `json:"team_id"`
	TotalScore  int  `json:"total_score"`
	GamesPlayed int  `json:"games_played"`
}

type teamAllTimeEntry struct {
	Rank        int    `json:"rank"`
	TeamID      uint   `json:"team_id"`
	Name        string `json:"name"`
	TotalScore  int    `json:"total_score"`
	GamesPlayed int    `json:"games_played"`
}

func (s *Server) handleTeamLeaderboard(w http.ResponseWriter, r *http.Request) {
	var rows []teamAllTimeRow
	err := s.db.Model(&db.GamePlayer{}).
		Select("players.team_id as team_id, SUM(game_players.score) as total_score, COUNT(DISTINCT game_players.game_id) as games_played").
		Joins("JOIN games ON games.id = game_players.game_id AND games.status = ?", statusCompleted).
		Joins("JOIN players ON players.id = game_players.player_id").
		Where("players.team_id IS NOT NULL").
		Group("players.team_id").
		Order("total_score desc").
		Scan(&rows).Error
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	entries := make([]teamAllTimeEntry, 0, len(rows))
	for i, row := range rows {
		entry := teamAllTimeEntry{
			Rank:        i + 1,
			TeamID:      row.TeamID,
			TotalScore:  row.TotalScore,
			GamesPlayed: row.GamesPlayed,
		}
		if i > 0 && row.TotalScore == rows[i-1].TotalScore {
			entry.Rank = entries[i-1].Rank
		}
		var team db.Team
		if err := s.db.First(&team, row.TeamID).Error; err == nil {
			entry.Name = team.Name
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": entries})
}
