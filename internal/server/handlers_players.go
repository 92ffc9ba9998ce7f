package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"wordwrangler/internal/db"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type createPlayerRequest struct {
	DisplayName string  `json:"display_name"`
	Avatar      *string `json:"avatar"`
	Email       *string `json:"email"`
	TeamID      *uint   `json:"team_id"`
}

// handleCreatePlayer registers a player identity. An email acts as a natural
// key: creating with a known email returns the existing player, which is how
// returning players log back in. Anonymous players get a placeholder address
// so the unique index holds.
func (s *Server) handleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req createPlayerRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name, err := validateDisplayName(req.DisplayName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var avatar *string
	if req.Avatar != nil {
		value, err := validateAvatar(*req.Avatar)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		avatar = &value
	}
	if req.TeamID != nil {
		if err := s.db.First(&db.Team{}, *req.TeamID).Error; err != nil {
			writeError(w, http.StatusNotFound, "team not found")
			return
		}
	}

	var email string
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		email = strings.ToLower(strings.TrimSpace(*req.Email))
		var existing db.Player
		err := s.db.Preload("Team").Where("email = ?", email).First(&existing).Error
		if err == nil {
			writeJSON(w, http.StatusOK, existing)
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusInternalServerError, "failed to create player")
			return
		}
	} else {
		email = fmt.Sprintf("player_%s@wordwrangler.local", uuid.NewString())
	}

	player := db.Player{
		Email:       &email,
		DisplayName: name,
		Avatar:      avatar,
		TeamID:      req.TeamID,
	}
	if err := s.db.Create(&player).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create player")
		return
	}
	log.Printf("player created id=%d name=%s", player.ID, player.DisplayName)
	writeJSON(w, http.StatusCreated, player)
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	query := s.db.Preload("Team").Order("created_at asc")
	if email := r.URL.Query().Get("email"); email != "" {
		query = query.Where("email = ?", strings.ToLower(strings.TrimSpace(email)))
	}
	players := []db.Player{}
	if err := query.Find(&players).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list players")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": players})
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

type recentGame struct {
	Code      string `json:"code"`
	Score     int    `json:"score"`
	CreatedAt string `json:"created_at"`
}

type playerStats struct {
	GamesPlayed       int            `json:"games_played"`
	TotalScore        int            `json:"total_score"`
	AverageScore      float64        `json:"average_score"`
	Submissions       int            `json:"submissions"`
	ScoreDistribution map[string]int `json:"score_distribution"`
	RecentGames       []recentGame   `json:"recent_games"`
}

// handleGetPlayer returns the player with stats derived from completed games.
func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var player db.Player
	if err := s.db.Preload("Team").First(&player, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, errPlayerNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load player")
		return
	}
	stats, err := s.playerStats(player.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load player")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"player": player,
		"stats":  stats,
	})
}

func (s *Server) playerStats(playerID uint) (*playerStats, error) {
	stats := &playerStats{
		ScoreDistribution: map[string]int{},
		RecentGames:       []recentGame{},
	}

	type membershipRow struct {
		Code      string
		Score     int
		CreatedAt string
	}
	var memberships []membershipRow
	err := s.db.Model(&db.GamePlayer{}).
		Select("games.code as code, game_players.score as score, games.created_at as created_at").
		Joins("JOIN games ON games.id = game_players.game_id AND games.status = ?", statusCompleted).
		Where("game_players.player_id = ?", playerID).
		Order("games.created_at desc").
		Scan(&memberships).Error
	if err != nil {
		return nil, err
	}
	stats.GamesPlayed = len(memberships)
	for i, row := range memberships {
		stats.TotalScore += row.Score
		if i < 5 {
			stats.RecentGames = append(stats.RecentGames, recentGame{
				Code:      row.Code,
				Score:     row.Score,
				CreatedAt: row.CreatedAt,
			})
		}
	}
	if stats.GamesPlayed > 0 {
		stats.AverageScore = float64(stats.TotalScore) / float64(stats.GamesPlayed)
	}

	type scoreBucket struct {
		AIScore int
		Total   int
	}
	var buckets []scoreBucket
	err = s.db.Model(&db.Submission{}).
		Select("submissions.ai_score as ai_score, COUNT(*) as total").
		Where("submissions.player_id = ? AND submissions.ai_score IS NOT NULL", playerID).
		Group("submissions.ai_score").
		Scan(&buckets).Error
	if err != nil {
		return nil, err
	}
	var count int64
	if err := s.db.Model(&db.Submission{}).Where("player_id = ?", playerID).Count(&count).Error; err != nil {
		return nil, err
	}
	stats.Submissions = int(count)
	for _, bucket := range buckets {
		stats.ScoreDistribution[strconv.Itoa(bucket.AIScore)] = bucket.Total
	}
	return stats, nil
}

var patchablePlayerFields = map[string]struct{}{
	"display_name": {},
	"avatar":       {},
	"team_id":      {},
}

func (s *Server) handleUpdatePlayer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}
	for name := range fields {
		if _, ok := patchablePlayerFields[name]; !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown field %q", name))
			return
		}
	}

	var player db.Player
	if err := s.db.First(&player, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, errPlayerNotFound.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load player")
		return
	}

	updates := map[string]any{}
	if raw, ok := fields["display_name"]; ok {
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			writeError(w, http.StatusBadRequest, "display_name must be a string")
			return
		}
		name, err := validateDisplayName(value)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		updates["display_name"] = name
	}
	if raw, ok := fields["avatar"]; ok {
		var value *string
		if err := json.Unmarshal(raw, &value); err != nil {
			writeError(w, http.StatusBadRequest, "avatar must be a string or null")
			return
		}
		if value != nil {
			avatar, err := validateAvatar(*value)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			value = &avatar
		}
		updates["avatar"] = value
	}
	if raw, ok := fields["team_id"]; ok {
		var value *uint
		if err := json.Unmarshal(raw, &value); err != nil {
			writeError(w, http.StatusBadRequest, "team_id must be an integer or null")
			return
		}
		if value != nil {
			if err := s.db.First(&db.Team{}, *value).Error; err != nil {
				writeError(w, http.StatusNotFound, "team not found")
				return
			}
		}
		updates["team_id"] = value
	}

	if err := s.db.Model(&player).Updates(updates).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update player")
		return
	}
	if err := s.db.Preload("Team").First(&player, id).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load player")
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	teams := []db.Team{}
	if err := s.db.Order("name asc").Find(&teams).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list teams")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

type createTeamRequest struct {
	Name string `json:"name"`
}

// handleCreateTeam is idempotent by name: creating "Red" twice returns the
// one Red team.
func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name, err := validateTeamName(req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var team db.Team
	if err := s.db.Where(db.Team{Name: name}).FirstOrCreate(&team).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create team")
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (s *Server) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var team db.Team
	if err := s.db.First(&team, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "team not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load team")
		return
	}
	members := []db.Player{}
	if err := s.db.Where("team_id = ?", team.ID).Order("display_name asc").Find(&members).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load team")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"team":    team,
		"players": members,
	})
}

// handleDeleteTeam detaches members before removing the team, so player rows
// never point at a missing team.
func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var team db.Team
	if err := s.db.First(&team, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "team not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load team")
		return
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.Player{}).Where("team_id = ?", team.ID).Update("team_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&team).Error
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete team")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": team.ID})
}

// handleListTasks exposes the task library for live facilitator choice.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	query := s.db.Order("title asc")
	if category := r.URL.Query().Get("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	tasks := []db.Task{}
	if err := query.Find(&tasks).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}
