package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationPreferences - настройки уведомлений пользователя
type NotificationPreferences struct {
	IssueUpdates  bool `json:"issueUpdates" bson:"issueUpdates"`
	StatusChanges bool `json:"statusChanges" bson:"statusChanges"`
	AdminMessages bool `json:"adminMessages" bson:"adminMessages"`
}

// DefaultNotificationPreferences - все уведомления включены
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{IssueUpdates: true, StatusChanges: true, AdminMessages: true}
}

// User - житель, сообщающий о проблемах
type User struct {
	ID                      uuid.UUID               `json:"id"`
	FullName                string                  `json:"fullName"`
	Email                   string                  `json:"email"`
	PasswordHash            string                  `json:"-"`
	ProfilePic              string                  `json:"profilePic"`
	PushToken               *string                 `json:"-"`
	NotificationPreferences NotificationPreferences `json:"notificationPreferences"`
	IsActive                bool                    `json:"isActive"`
	CreatedAt               time.Time               `json:"createdAt"`
	UpdatedAt               time.Time               `json:"updatedAt"`
}

// Admin - администратор, управляющий жизненным циклом обращений
type Admin struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserSummary - проекция пользователя для панели администратора
type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	ProfilePic  string    `json:"profilePic"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	ReportCount int       `json:"reportCount"`
}

// UserStats - статистика обращений пользователя
type UserStats struct {
	Total             int `json:"total"`
	Resolved          int `json:"resolved"`
	Pending           int `json:"pending"`
	ProfileCompletion int `json:"profileCompletion"`
}

// ProfileCompletion считает долю заполненных полей профиля в процентах
func (u *User) ProfileCompletion() int {
	filled := 0
	for _, v := range []string{u.FullName, u.Email, u.ProfilePic} {
		if v != "" {
			filled++
		}
	}
	return (filled*100 + 1) / 3
}
