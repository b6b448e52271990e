package models

import "time"

type DeductionRecord struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	UserID      string    `gorm:"size:24;index;not null" json:"-"`
	SessionID   *string   `json:"sessionId"`
	RunID       *string   `json:"runId"`
	SessionName *string   `json:"sessionName"`
	Deducted    int       `gorm:"not null" json:"deducted"`
	Timestamp   time.Time `gorm:"not null" json:"timestamp"`
}

// Matches reports whether the record charges the same run or session.
func (r DeductionRecord) Matches(sessionID, runID *string) bool {
	if runID != nil && r.RunID != nil && *r.RunID == *runID {
		return true
	}
	return sessionID != nil && r.SessionID != nil && *r.SessionID == *sessionID
}
