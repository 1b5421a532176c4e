package models

// NotificationType - тип push-уведомления автору обращения
type NotificationType string

const (
	NotificationStatusUpdate  NotificationType = "STATUS_UPDATE"
	NotificationIssueVerified NotificationType = "ISSUE_VERIFIED"
	NotificationIssueRejected NotificationType = "ISSUE_REJECTED"
	NotificationIssueResolved NotificationType = "ISSUE_RESOLVED"
)

// NotificationForStatus возвращает тип уведомления для перехода в указанный статус
func NotificationForStatus(status IssueStatus) NotificationType {
	switch status {
	case StatusVerified:
		return NotificationIssueVerified
	case StatusRejected:
		return NotificationIssueRejected
	case StatusResolved:
		return NotificationIssueResolved
	default:
		return NotificationStatusUpdate
	}
}
