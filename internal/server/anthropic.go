package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"wordwrangler/internal/config"
	"wordwrangler/internal/db"
)

// judgment is what the judge persona returns for one submission: a verdict
// from the judge, a quip from the cohost, and a 1-5 score.
type judgment struct {
	JudgeSays   string `json:"judge_says"`
	CohostSays  string `json:"cohost_says"`
	Score       int    `json:"score"`
	ScoreReason string `json:"score_reason"`
}

type reflectionInsight struct {
	Title           string `json:"title"`
	Observation     string `json:"observation"`
	QuestionForTeam string `json:"question_for_team"`
}

type notableSubmission struct {
	TaskTitle   string `json:"task_title"`
	Player      string `json:"player"`
	Excerpt     string `json:"excerpt"`
	WhyNotable  string `json:"why_notable"`
}

// reflectionPayload is the strict end-of-game schema. Anything the model
// returns that does not decode into it fails the whole generation.
type reflectionPayload struct {
	OpeningObservation string              `json:"opening_observation"`
	Insights           []reflectionInsight `json:"insights"`
	ClosingLine        string              `json:"closing_line"`
	NotableSubmissions []notableSubmission `json:"notable_submissions"`
}

type reflectionRound struct {
	RoundNumber int
	Task        *db.Task
	Submissions []db.Submission
}

// aiClient is the seam between the game core and the text-generation
// service; tests drop in a stub.
type aiClient interface {
	JudgeSubmission(ctx context.Context, task *db.Task, playerName, content string) (*judgment, error)
	GenerateReflection(ctx context.Context, rounds []reflectionRound) (*reflectionPayload, error)
}

type anthropicClient struct {
	apiKey          string
	baseURL         string
	judgeModel      string
	reflectionModel string
	httpClient      *http.Client
}

func newAnthropicClient(cfg config.Config) *anthropicClient {
	return &anthropicClient{
		apiKey:          cfg.AnthropicAPIKey,
		baseURL:         strings.TrimSuffix(cfg.AnthropicBaseURL, "/"),
		judgeModel:      cfg.JudgeModel,
		reflectionModel: cfg.ReflectionModel,
		httpClient:      &http.Client{Timeout: 60 * time.Second},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// complete sends one prompt and returns the first text block of the reply.
func (c *anthropicClient) complete(ctx context.Context, model, system, prompt string, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("anthropic api key not configured")
	}
	body, err := json.Marshal(anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("unexpected response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("anthropic: %s", parsed.Error.Message)
		}
		return "", fmt.Errorf("anthropic: status %d", resp.StatusCode)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("anthropic: no text content in response")
}

// stripCodeFence removes a ```json ... ``` wrapper models sometimes add
// around JSON output.
func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

const judgeSystem = `You are the judge of a party game of short timed writing challenges, working with a cohost. You are witty but fair. Respond only with JSON.`

func (c *anthropicClient) JudgeSubmission(ctx context.Context, task *db.Task, playerName, content string) (*judgment, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "The challenge was: %s\n%s\n", task.Title, task.Description)
	if task.JudgingCriteria != nil && *task.JudgingCriteria != "" {
		fmt.Fprintf(&prompt, "Judging criteria: %s\n", *task.JudgingCriteria)
	}
	fmt.Fprintf(&prompt, "\n%s submitted:\n%s\n\n", playerName, content)
	prompt.WriteString(`Score the submission from 1 (weak) to 5 (brilliant) and give one short remark each from the judge and the cohost. Reply with exactly this JSON shape:
{"judge_says": "...", "cohost_says": "...", "score": 3, "score_reason": "..."}`)

	text, err := c.complete(ctx, c.judgeModel, judgeSystem, prompt.String(), 1024)
	if err != nil {
		return nil, err
	}
	var verdict judgment
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &verdict); err != nil {
		return nil, fmt.Errorf("judge returned invalid json: %w", err)
	}
	if verdict.Score < 1 {
		verdict.Score = 1
	}
	if verdict.Score > 5 {
		verdict.Score = 5
	}
	return &verdict, nil
}

const reflectionSystem = `You are a thoughtful facilitator closing out a team writing game. You surface patterns in what the team wrote and pose questions worth discussing. Respond only with JSON.`

func (c *anthropicClient) GenerateReflection(ctx context.Context, rounds []reflectionRound) (*reflectionPayload, error) {
	var prompt strings.Builder
	total := 0
	prompt.WriteString("The team just finished a game of timed writing challenges. Here is everything they wrote:\n\n")
	for _, round := range rounds {
		title := "untitled"
		if round.Task != nil {
			title = round.Task.Title
		}
		fmt.Fprintf(&prompt, "Round %d — %s\n", round.RoundNumber, title)
		for _, sub := range round.Submissions {
			name := "anonymous"
			if sub.Player != nil {
				name = sub.Player.DisplayName
			}
			if sub.AIScore != nil {
				fmt.Fprintf(&prompt, "- %s (scored %d): %s\n", name, *sub.AIScore, sub.Content)
			} else {
				fmt.Fprintf(&prompt, "- %s: %s\n", name, sub.Content)
			}
			total++
		}
		prompt.WriteString("\n")
	}
	fmt.Fprintf(&prompt, "That is %d submissions over %d rounds.\n\n", total, len(rounds))
	prompt.WriteString(`Write a short reflection for the team. Reply with exactly this JSON shape:
{"opening_observation": "...", "insights": [{"title": "...", "observation": "...", "question_for_team": "..."}], "closing_line": "...", "notable_submissions": [{"task_title": "...", "player": "...", "excerpt": "...", "why_notable": "..."}]}
Include one to three insights.`)

	text, err := c.complete(ctx, c.reflectionModel, reflectionSystem, prompt.String(), 2048)
	if err != nil {
		return nil, err
	}
	var payload reflectionPayload
	decoder := json.NewDecoder(strings.NewReader(stripCodeFence(text)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("reflection returned invalid json: %w", err)
	}
	if payload.OpeningObservation == "" || len(payload.Insights) == 0 || payload.ClosingLine == "" {
		return nil, fmt.Errorf("reflection response missing required fields")
	}
	return &payload, nil
}
