package v1

import (
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/civic_reporting_system/internal/models"
)

// CreateIssueRequest DTO для создания обращения
// @Description DTO для создания обращения
type CreateIssueRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"required,max=5000"`
	Priority    string  `json:"priority" validate:"required,oneof=Low Medium High"`
	Latitude    float64 `json:"latitude" validate:"required,latitude"`
	Longitude   float64 `json:"longitude" validate:"required,longitude"`
	ImageURL    string  `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

// UpdateStatusRequest DTO для смены статуса
// @Description DTO для смены статуса
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes" validate:"required"`
}

// VerifyIssueRequest DTO для решения по проверке обращения
// @Description DTO для решения по проверке обращения
type VerifyIssueRequest struct {
	IsVerified        *bool  `json:"isVerified" validate:"required"`
	VerificationNotes string `json:"verificationNotes,omitempty"`
}

// EditIssueRequest DTO для правки текста обращения
// @Description DTO для правки текста обращения
type EditIssueRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=5000"`
}

// UpdateProfileRequest DTO для частичного обновления профиля
// @Description DTO для частичного обновления профиля
type UpdateProfileRequest struct {
	FullName   *string `json:"fullName,omitempty" validate:"omitempty,max=120"`
	ProfilePic *string `json:"profilePic,omitempty" validate:"omitempty,url"`
}

// PushTokenRequest DTO для регистрации push-токена. Пустой токен отключает уведомления.
// @Description DTO для регистрации push-токена
type PushTokenRequest struct {
	PushToken string `json:"pushToken"`
}

// ReporterResponse DTO автора обращения
type ReporterResponse struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"fullName"`
	Email    string    `json:"email"`
}

// UpdateResponse DTO записи журнала
type UpdateResponse struct {
	Message       string    `json:"message"`
	Status        string    `json:"status"`
	UpdatedBy     uuid.UUID `json:"updatedBy"`
	UpdatedByName string    `json:"updatedByName,omitempty"`
	Date          time.Time `json:"date"`
}

// IssueResponse DTO для ответа с полной информацией об обращении
// @Description DTO для ответа с полной информацией об обращении
type IssueResponse struct {
	ID                uuid.UUID          `json:"id"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Priority          string             `json:"priority"`
	ImageURL          *string            `json:"imageUrl"`
	Location          models.Location    `json:"location"`
	Status            string             `json:"status"`
	IsVerified        bool               `json:"isVerified"`
	VerificationNotes *string            `json:"verificationNotes,omitempty"`
	AIAnalysis        *models.AIAnalysis `json:"aiAnalysis,omitempty"`
	User              *ReporterResponse  `json:"user,omitempty"`
	Updates           []UpdateResponse   `json:"updates"`
	Version           int64              `json:"version"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// IssueSummaryResponse DTO элемента списка обращений, без журнала
// @Description DTO элемента списка обращений
type IssueSummaryResponse struct {
	ID          uuid.UUID         `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Priority    string            `json:"priority"`
	Status      string            `json:"status"`
	Location    models.Location   `json:"location"`
	ImageURL    *string           `json:"imageUrl"`
	User        *ReporterResponse `json:"user,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// ProfileResponse DTO профиля пользователя
// @Description DTO профиля пользователя
type ProfileResponse struct {
	ID                      uuid.UUID                      `json:"id"`
	FullName                string                         `json:"fullName"`
	Email                   string                         `json:"email"`
	ProfilePic              string                         `json:"profilePic"`
	NotificationPreferences models.NotificationPreferences `json:"notificationPreferences"`
	CreatedAt               time.Time                      `json:"createdAt"`
}

// UploadResponse DTO с адресом загруженного изображения
type UploadResponse struct {
	URL string `json:"url"`
}
