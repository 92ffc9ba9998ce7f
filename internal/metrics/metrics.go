package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	GamesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wordwrangler_games_created_total", Help: "Total games created"},
	)
	PlayersJoined = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wordwrangler_players_joined_total", Help: "Total game joins"},
	)
	Submissions = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wordwrangler_submissions_total", Help: "Total submissions stored (including resubmissions)"},
	)
	Judgments = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wordwrangler_judgments_total", Help: "Total submissions judged by the AI judge"},
	)
	JudgeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wordwrangler_judge_failures_total", Help: "Total judge calls that fell back to the neutral score"},
	)
	AwardConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wordwrangler_award_conflicts_total", Help: "Total optimistic-lock retries while awarding points"},
	)
	Reflections = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wordwrangler_reflections_total", Help: "Total reflections generated"},
	)
)

func Register() {
	prometheus.MustRegister(
		GamesCreated,
		PlayersJoined,
		Submissions,
		Judgments,
		JudgeFailures,
		AwardConflicts,
		Reflections,
	)
}
