package models

import "fmt"

// EventType - тип события в реальном времени
type EventType string

const (
	EventNewIssue      EventType = "NEW_ISSUE"
	EventStatusUpdate  EventType = "STATUS_UPDATE"
	EventIssueVerified EventType = "ISSUE_VERIFIED"
	EventIssueRejected EventType = "ISSUE_REJECTED"
	EventIssueEdit     EventType = "ISSUE_EDIT"
)

// Event - конверт события {type, issue}, рассылаемый всем подключенным клиентам.
// Создается только через конструкторы ниже. issue.version растет с каждой записью,
// клиент отбрасывает событие с версией не выше уже полученной.
type Event struct {
	Type  EventType `json:"type"`
	Issue *Issue    `json:"issue"`
}

// NewIssueCreatedEvent - создано новое обращение
func NewIssueCreatedEvent(issue *Issue) Event {
	return Event{Type: EventNewIssue, Issue: issue}
}

// NewIssueEditedEvent - изменены заголовок или описание
func NewIssueEditedEvent(issue *Issue) Event {
	return Event{Type: EventIssueEdit, Issue: issue}
}

// NewTransitionEvent выбирает тип события по новому статусу обращения
func NewTransitionEvent(issue *Issue) Event {
	switch issue.Status {
	case StatusVerified:
		return Event{Type: EventIssueVerified, Issue: issue}
	case StatusRejected:
		return Event{Type: EventIssueRejected, Issue: issue}
	default:
		return Event{Type: EventStatusUpdate, Issue: issue}
	}
}

// Validate отбрасывает конверты с неизвестным типом или без обращения
func (e Event) Validate() error {
	switch e.Type {
	case EventNewIssue, EventStatusUpdate, EventIssueVerified, EventIssueRejected, EventIssueEdit:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.Issue == nil {
		return fmt.Errorf("event %s has no issue", e.Type)
	}
	return nil
}
