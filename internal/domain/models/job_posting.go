package models

import "time"

type JobPosting struct {
	ID             uint      `gorm:"primaryKey" json:"-"`
	UUID           string    `gorm:"size:64;uniqueIndex;not null" json:"uuid"`
	UserID         string    `gorm:"size:24;index" json:"userId,omitempty"`
	SessionID      string    `gorm:"index" json:"sessionId,omitempty"`
	CorrelationRef string    `json:"correlationRef,omitempty"`
	Title          string    `json:"title,omitempty"`
	Company        string    `json:"company,omitempty"`
	Location       string    `json:"location,omitempty"`
	URL            string    `json:"url,omitempty"`
	Description    string    `json:"description,omitempty"`
	Applied        bool      `gorm:"not null;default:false" json:"applied"`
	Recipient      string    `json:"recipient,omitempty"`
	Subject        string    `json:"subject,omitempty"`
	Body           string    `json:"body,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
