package server

import (
	"errors"
	"net/http"

	"wordwrangler/internal/config"
	"wordwrangler/internal/db"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"gorm.io/gorm"
)

type Server struct {
	db  *gorm.DB
	cfg config.Config
	ws  *wsHub
	ai  aiClient
}

func New(conn *gorm.DB, cfg config.Config) *Server {
	return &Server{
		db:  conn,
		cfg: cfg,
		ws:  newWSHub(),
		ai:  newAnthropicClient(cfg),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /games", s.handleCreateGame)
	mux.HandleFunc("GET /games", s.handleListGames)
	mux.HandleFunc("GET /games/{code}", s.handleGetGame)
	mux.HandleFunc("PATCH /games/{code}", s.handleUpdateGame)
	mux.HandleFunc("DELETE /games/{code}", s.handleDeleteGame)
	mux.HandleFunc("POST /games/{code}/join", s.handleJoinGame)
	mux.HandleFunc("DELETE /games/{code}/join", s.handleLeaveGame)
	mux.HandleFunc("POST /games/{code}/task", s.handleAssignTask)
	mux.HandleFunc("POST /games/{code}/submissions", s.handleCreateSubmission)
	mux.HandleFunc("GET /games/{code}/submissions", s.handleListSubmissions)
	mux.HandleFunc("POST /games/{code}/award", s.handleAward)
	mux.HandleFunc("POST /games/{code}/judge", s.handleJudge)
	mux.HandleFunc("GET /games/{code}/reflection", s.handleGetReflection)
	mux.HandleFunc("POST /games/{code}/reflection", s.handleGenerateReflection)
	mux.HandleFunc("GET /games/{code}/leaderboard", s.handleGameLeaderboard)
	mux.HandleFunc("POST /games/{code}/advance", s.handleAdvance)
	mux.HandleFunc("POST /games/{code}/timer", s.handleTimer)
	mux.HandleFunc("GET /games/{code}/events", s.handleEvents)
	mux.HandleFunc("GET /ws/games/{code}", s.handleWebsocket)

	mux.HandleFunc("POST /players", s.handleCreatePlayer)
	mux.HandleFunc("GET /players", s.handleListPlayers)
	mux.HandleFunc("GET /players/{id}", s.handleGetPlayer)
	mux.HandleFunc("PATCH /players/{id}", s.handleUpdatePlayer)

	mux.HandleFunc("GET /teams", s.handleListTeams)
	mux.HandleFunc("POST /teams", s.handleCreateTeam)
	mux.HandleFunc("GET /teams/{id}", s.handleGetTeam)
	mux.HandleFunc("DELETE /teams/{id}", s.handleDeleteTeam)

	mux.HandleFunc("GET /tasks", s.handleListTasks)
	mux.HandleFunc("GET /leaderboards/players", s.handlePlayerLeaderboard)
	mux.HandleFunc("GET /leaderboards/teams", s.handleTeamLeaderboard)

	mux.Handle("GET /metrics", promhttp.Handler())

	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}).Handler(mux)
}

// loadGame fetches a game by join code, case-insensitively.
func (s *Server) loadGame(code string) (*db.Game, error) {
	var game db.Game
	err := s.db.Where("code = ?", normalizeCode(code)).First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &game, nil
}
