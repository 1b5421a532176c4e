package v1

import "github.com/shenikar/civic_reporting_system/internal/models"

// DTOToIssueModel преобразует DTO создания в доменную модель
func DTOToIssueModel(dto CreateIssueRequest) *models.Issue {
	issue := &models.Issue{
		Title:       dto.Title,
		Description: dto.Description,
		Priority:    models.Priority(dto.Priority),
		Location: models.Location{
			Latitude:  dto.Latitude,
			Longitude: dto.Longitude,
		},
	}
	if dto.ImageURL != "" {
		url := dto.ImageURL
		issue.ImageURL = &url
	}
	return issue
}

func reporterResponse(r *models.Reporter) *ReporterResponse {
	if r == nil {
		return nil
	}
	return &ReporterResponse{ID: r.ID, FullName: r.FullName, Email: r.Email}
}

// ModelToIssueResponse преобразует доменную модель в DTO для ответа
func ModelToIssueResponse(model *models.Issue) *IssueResponse {
	updates := make([]UpdateResponse, len(model.Updates))
	for i, u := range model.Updates {
		updates[i] = UpdateResponse{
			Message:       u.Message,
			Status:        string(u.Status),
			UpdatedBy:     u.UpdatedBy,
			UpdatedByName: u.UpdatedByName,
			Date:          u.Date,
		}
	}
	return &IssueResponse{
		ID:                model.ID,
		Title:             model.Title,
		Description:       model.Description,
		Priority:          string(model.Priority),
		ImageURL:          model.ImageURL,
		Location:          model.Location,
		Status:            string(model.Status),
		IsVerified:        model.IsVerified,
		VerificationNotes: model.VerificationNotes,
		AIAnalysis:        model.AIAnalysis,
		User:              reporterResponse(model.Reporter),
		Updates:           updates,
		Version:           model.Version,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}

// ModelsToIssueSummaries преобразует слайс моделей в проекцию для списка
func ModelsToIssueSummaries(issues []*models.Issue) []*IssueSummaryResponse {
	responses := make([]*IssueSummaryResponse, len(issues))
	for i, m := range issues {
		responses[i] = &IssueSummaryResponse{
			ID:          m.ID,
			Title:       m.Title,
			Description: m.Description,
			Priority:    string(m.Priority),
			Status:      string(m.Status),
			Location:    m.Location,
			ImageURL:    m.ImageURL,
			User:        reporterResponse(m.Reporter),
			CreatedAt:   m.CreatedAt,
		}
	}
	return responses
}

// ModelToProfileResponse преобразует пользователя в DTO профиля
func ModelToProfileResponse(u *models.User) *ProfileResponse {
	return &ProfileResponse{
		ID:                      u.ID,
		FullName:                u.FullName,
		Email:                   u.Email,
		ProfilePic:              u.ProfilePic,
		NotificationPreferences: u.NotificationPreferences,
		CreatedAt:               u.CreatedAt,
	}
}
