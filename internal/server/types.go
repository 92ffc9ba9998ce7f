package server

const (
	statusLobby       = "lobby"
	statusActive      = "active"
	statusJudging     = "judging"
	statusLeaderboard = "leaderboard"
	statusReflection  = "reflection"
	statusCompleted   = "completed"
)

const (
	maxDisplayNameLength = 50
	maxAvatarLength      = 50
	maxTeamNameLength    = 64
	maxContentLength     = 5000
	maxTotalRounds       = 20
	fallbackJudgeScore   = 3
)

func validStatus(status string) bool {
	switch status {
	case statusLobby, statusActive, statusJudging, statusLeaderboard, statusReflection, statusCompleted:
		return true
	}
	return false
}
