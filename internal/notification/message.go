package notification

import (
	"fmt"
	"strings"

	"github.com/shenikar/civic_reporting_system/internal/models"
)

// detailsScreen - экран мобильного клиента, на который ведет уведомление
const detailsScreen = "IssueDetails"

// Message - push-сообщение в формате Expo
type Message struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
	Sound string            `json:"sound,omitempty"`
}

// BuildMessage собирает текст уведомления по типу и обращению
func BuildMessage(token string, kind models.NotificationType, issue *models.Issue) (Message, error) {
	var title, body string
	switch kind {
	case models.NotificationStatusUpdate:
		title = "🔄 Issue Status Updated"
		body = fmt.Sprintf("Your reported issue \"%s\" has been updated to %s", issue.Title, humanStatus(issue.Status))
	case models.NotificationIssueVerified:
		title = "✅ Issue Verified"
		body = fmt.Sprintf("Your report \"%s\" has been verified by our team", issue.Title)
	case models.NotificationIssueRejected:
		title = "❌ Issue Rejected"
		body = fmt.Sprintf("Unfortunately, your report \"%s\" could not be verified", issue.Title)
	case models.NotificationIssueResolved:
		title = "🎉 Issue Resolved"
		body = fmt.Sprintf("Great news! The issue \"%s\" has been resolved", issue.Title)
	default:
		return Message{}, fmt.Errorf("unknown notification type %q", kind)
	}

	return Message{
		To:    token,
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":    string(kind),
			"issueId": issue.ID.String(),
			"screen":  detailsScreen,
			"status":  string(issue.Status),
		},
		Sound: "default",
	}, nil
}

func humanStatus(status models.IssueStatus) string {
	return strings.ReplaceAll(string(status), "_", " ")
}
