package models

import "time"

type ConnectionEventType string

const (
	ConnectionEventConnected    ConnectionEventType = "connected"
	ConnectionEventDisconnected ConnectionEventType = "disconnected"
)

// ConnectionEvent is one row of the append-only connection history, written
// from the perspective of SubjectUser. A transition produces one row per
// participant sharing the same TransitionID.
type ConnectionEvent struct {
	Seq          uint64              `json:"seq" gorm:"primaryKey;autoIncrement"`
	TransitionID string              `json:"transitionId" gorm:"type:varchar(36);not null;index"`
	Type         ConnectionEventType `json:"type" gorm:"type:varchar(20);not null"`
	SubjectUser  string              `json:"subjectUser" gorm:"type:varchar(64);not null;index:idx_event_subject_time,priority:1"`
	OtherUser    string              `json:"otherUser" gorm:"type:varchar(64);not null"`
	OccurredAt   time.Time           `json:"occurredAt" gorm:"not null;index:idx_event_subject_time,priority:2"`
}
