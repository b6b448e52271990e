package models

import "time"

type Task struct {
	Prompt     string    `json:"prompt"`
	UserID     string    `json:"userId"`
	SessionID  string    `json:"sessionId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	Attempt    int       `json:"attempt"`
}
