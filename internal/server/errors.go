package server

import "errors"

var (
	errGameNotFound     = errors.New("game not found")
	errPlayerNotFound   = errors.New("player not found")
	errTaskNotFound     = errors.New("task not found")
	errNoActiveTask     = errors.New("no active task")
	errRetriesExhausted = errors.New("failed to award points after retries")
	errStateChanged     = errors.New("game state changed concurrently")
)
