package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockledger/backend/internal/domain/workflow"
)

// WorkflowSessionModel stores an operator's open session as one JSON
// document. The scalar columns duplicate a few fields for inspection in SQL.
type WorkflowSessionModel struct {
	OperatorID string           `gorm:"type:varchar(255);primary_key"`
	SessionID  uuid.UUID        `gorm:"type:uuid;not null"`
	Operator   string           `gorm:"type:varchar(255)"`
	Mode       workflow.Mode    `gorm:"type:varchar(20);not null"`
	Status     workflow.Status  `gorm:"type:varchar(20);not null"`
	Data       workflow.Session `gorm:"type:text;serializer:json;not null"`
	UpdatedAt  time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WorkflowSessionModel) TableName() string {
	return "workflow_sessions"
}

// ToDomain returns a copy of the stored session
func (m *WorkflowSessionModel) ToDomain() *workflow.Session {
	s := m.Data
	return &s
}

// FromDomain populates the model from a session
func (m *WorkflowSessionModel) FromDomain(s *workflow.Session) {
	m.OperatorID = s.OperatorID
	m.SessionID = s.ID
	m.Operator = s.Operator
	m.Mode = s.Mode
	m.Status = s.Status
	m.Data = *s
	m.UpdatedAt = s.UpdatedAt
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now()
	}
}

// LeaderboardEntryModel is the persistence model for a completed session score
type LeaderboardEntryModel struct {
	SessionID   uuid.UUID     `gorm:"type:uuid;primary_key"`
	Operator    string        `gorm:"type:varchar(255);not null;index"`
	Mode        workflow.Mode `gorm:"type:varchar(20);not null"`
	FinalScore  float64       `gorm:"not null;index"`
	Level       int           `gorm:"not null"`
	Onload      int           `gorm:"not null"`
	Offload     int           `gorm:"not null"`
	Errors      int           `gorm:"not null"`
	CompletedAt time.Time     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LeaderboardEntryModel) TableName() string {
	return "leaderboard_entries"
}

// ToDomain converts the model to a domain LeaderboardEntry
func (m *LeaderboardEntryModel) ToDomain() workflow.LeaderboardEntry {
	return workflow.LeaderboardEntry{
		SessionID:   m.SessionID,
		Operator:    m.Operator,
		Mode:        m.Mode,
		FinalScore:  m.FinalScore,
		Level:       m.Level,
		Onload:      m.Onload,
		Offload:     m.Offload,
		Errors:      m.Errors,
		CompletedAt: m.CompletedAt,
	}
}

// LeaderboardEntryModelFromDomain creates a model from a domain entry
func LeaderboardEntryModelFromDomain(e workflow.LeaderboardEntry) *LeaderboardEntryModel {
	return &LeaderboardEntryModel{
		SessionID:   e.SessionID,
		Operator:    e.Operator,
		Mode:        e.Mode,
		FinalScore:  e.FinalScore,
		Level:       e.Level,
		Onload:      e.Onload,
		Offload:     e.Offload,
		Errors:      e.Errors,
		CompletedAt: e.CompletedAt,
	}
}
