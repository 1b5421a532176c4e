package models

import (
	"time"

	"github.com/google/uuid"
)

// IssueStatus - состояние обращения в жизненном цикле
type IssueStatus string

const (
	StatusPendingVerification IssueStatus = "pending_verification"
	StatusVerified            IssueStatus = "verified"
	StatusRejected            IssueStatus = "rejected"
	StatusInProgress          IssueStatus = "in_progress"
	StatusResolved            IssueStatus = "resolved"
)

// Priority - приоритет обращения
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Location - координаты места проблемы
type Location struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// Reporter - отображаемые данные автора обращения
type Reporter struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic,omitempty"`
	PushToken  string    `json:"-"`

	// Разрешены ли push-уведомления о смене статуса
	StatusChanges bool `json:"-"`
}

// Update - неизменяемая запись журнала изменений статуса
type Update struct {
	Message       string      `json:"message"`
	Status        IssueStatus `json:"status"`
	UpdatedBy     uuid.UUID   `json:"updatedBy"`
	UpdatedByName string      `json:"updatedByName,omitempty"`
	Date          time.Time   `json:"date"`
}

// AIAnalysis - результат автоматической классификации текста обращения.
// Confidence в процентах.
type AIAnalysis struct {
	IncidentType string       `json:"incidentType" bson:"incidentType"`
	Confidence   float64      `json:"confidence" bson:"confidence"`
	TextAnalysis TextAnalysis `json:"textAnalysis" bson:"textAnalysis"`
}

type TextAnalysis struct {
	IssueType  string  `json:"issueType" bson:"issueType"`
	Severity   string  `json:"severity" bson:"severity"`
	Confidence float64 `json:"confidence" bson:"confidence"`
}

// Issue - обращение гражданина
type Issue struct {
	ID                uuid.UUID   `json:"id"`
	UserID            uuid.UUID   `json:"userId"`
	Reporter          *Reporter   `json:"user,omitempty"`
	Title             string      `json:"title"`
	Description       string      `json:"description"`
	Priority          Priority    `json:"priority"`
	ImageURL          *string     `json:"imageUrl,omitempty"`
	Location          Location    `json:"location"`
	Status            IssueStatus `json:"status"`
	IsVerified        bool        `json:"isVerified"`
	VerificationNotes *string     `json:"verificationNotes,omitempty"`
	AIAnalysis        *AIAnalysis `json:"aiAnalysis,omitempty"`
	Updates           []Update    `json:"updates"`
	Version           int64       `json:"version"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// LastUpdate возвращает последнюю запись журнала или nil
func (i *Issue) LastUpdate() *Update {
	if len(i.Updates) == 0 {
		return nil
	}
	return &i.Updates[len(i.Updates)-1]
}

// Clone возвращает глубокую копию обращения
func (i *Issue) Clone() *Issue {
	c := *i
	if i.Reporter != nil {
		r := *i.Reporter
		c.Reporter = &r
	}
	if i.ImageURL != nil {
		u := *i.ImageURL
		c.ImageURL = &u
	}
	if i.VerificationNotes != nil {
		n := *i.VerificationNotes
		c.VerificationNotes = &n
	}
	if i.AIAnalysis != nil {
		a := *i.AIAnalysis
		c.AIAnalysis = &a
	}
	c.Updates = make([]Update, len(i.Updates))
	copy(c.Updates, i.Updates)
	return &c
}

// IssueFilter - параметры выборки списка обращений
type IssueFilter struct {
	// Если задан, возвращаются только обращения этого пользователя
	UserID *uuid.UUID
}

// Transition - атомарное изменение статуса обращения.
// ExpectedVersion используется как условие записи (compare-and-swap).
type Transition struct {
	IssueID         uuid.UUID
	ExpectedVersion int64
	From            IssueStatus
	To              IssueStatus
	Update          Update

	// Заполняется только для переходов в verified/rejected
	Verification *Verification
}

// ApplyTo возвращает копию issue с примененным переходом.
// Нужна, когда запись зафиксирована, а перечитать ее не удалось.
func (t *Transition) ApplyTo(issue *Issue) *Issue {
	next := issue.Clone()
	next.Status = t.To
	if t.Verification != nil {
		next.IsVerified = t.Verification.IsVerified
		next.VerificationNotes = nil
		if t.Verification.Notes != "" {
			notes := t.Verification.Notes
			next.VerificationNotes = &notes
		}
	}
	next.Updates = append(next.Updates, t.Update)
	next.Version = t.ExpectedVersion + 1
	next.UpdatedAt = t.Update.Date
	return next
}

// Verification - результат проверки обращения администратором
type Verification struct {
	IsVerified bool
	Notes      string
}
