package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/shenikar/civic_reporting_system/internal/service"
)

// MemoryStore - хранилище в памяти процесса с той же семантикой условной записи,
// что и у postgres/mongo. Используется в режиме разработки и в тестах.
type MemoryStore struct {
	mu     sync.RWMutex
	issues map[uuid.UUID]*models.Issue
	users  map[uuid.UUID]*models.User
	admins map[uuid.UUID]*models.Admin
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		issues: make(map[uuid.UUID]*models.Issue),
		users:  make(map[uuid.UUID]*models.User),
		admins: make(map[uuid.UUID]*models.Admin),
		now:    time.Now,
	}
}

var (
	_ service.IssueRepository = (*MemoryStore)(nil)
	_ service.UserRepository  = memoryUsers{}
)

// memoryUsers - представление MemoryStore как хранилища пользователей
type memoryUsers struct {
	*MemoryStore
}

// Users возвращает хранилище пользователей поверх тех же данных
func (m *MemoryStore) Users() service.UserRepository {
	return memoryUsers{m}
}

// Create сохраняет новое обращение
func (m *MemoryStore) Create(ctx context.Context, issue *models.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.issues[issue.ID]; ok {
		return fmt.Errorf("issue %s already exists: %w", issue.ID, service.ErrConflict)
	}
	now := m.now().UTC()
	issue.CreatedAt, issue.UpdatedAt = now, now
	issue.Version = 1

	stored := issue.Clone()
	stored.Reporter = nil
	m.issues[issue.ID] = stored
	return nil
}

// GetByID возвращает копию обращения с автором и именами администраторов
func (m *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	issue, ok := m.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue with id %s: %w", id, service.ErrNotFound)
	}
	return m.populate(issue, true), nil
}

// List возвращает сводку обращений без истории, новые первыми
func (m *MemoryStore) List(ctx context.Context, filter models.IssueFilter) ([]*models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	issues := make([]*models.Issue, 0, len(m.issues))
	for _, issue := range m.issues {
		if filter.UserID != nil && issue.UserID != *filter.UserID {
			continue
		}
		summary := m.populate(issue, false)
		summary.Updates = nil
		issues = append(issues, summary)
	}
	sort.Slice(issues, func(i, j int) bool {
		return issues[i].CreatedAt.After(issues[j].CreatedAt)
	})
	return issues, nil
}

// ApplyTransition применяет переход, только если версия не изменилась с момента чтения
func (m *MemoryStore) ApplyTransition(ctx context.Context, t *models.Transition) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	issue, ok := m.issues[t.IssueID]
	if !ok {
		return nil, fmt.Errorf("issue with id %s: %w", t.IssueID, service.ErrNotFound)
	}
	if issue.Version != t.ExpectedVersion || issue.Status != t.From {
		return nil, fmt.Errorf("issue %s version %d, expected %d: %w", t.IssueID, issue.Version, t.ExpectedVersion, service.ErrConflict)
	}

	issue.Updates = append(issue.Updates, t.Update)
	issue.Status = t.To
	if t.Verification != nil {
		issue.IsVerified = t.Verification.IsVerified
		issue.VerificationNotes = notesPtr(t.Verification.Notes)
	}
	issue.Version++
	issue.UpdatedAt = m.now().UTC()

	return m.populate(issue, true), nil
}

// UpdateDetails меняет заголовок и описание с проверкой версии
func (m *MemoryStore) UpdateDetails(ctx context.Context, id uuid.UUID, title, description string, expectedVersion int64) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	issue, ok := m.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue with id %s: %w", id, service.ErrNotFound)
	}
	if issue.Version != expectedVersion {
		return nil, fmt.Errorf("issue %s version %d, expected %d: %w", id, issue.Version, expectedVersion, service.ErrConflict)
	}

	issue.Title = title
	issue.Description = description
	issue.Version++
	issue.UpdatedAt = m.now().UTC()
	return m.populate(issue, true), nil
}

// CreateUser сохраняет пользователя, email уникален
func (m memoryUsers) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("user with email %s already exists: %w", user.Email, service.ErrConflict)
		}
	}
	now := m.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m memoryUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user with id %s: %w", id, service.ErrNotFound)
	}
	c := *u
	return &c, nil
}

// ListWithReportCounts считает обращения каждого пользователя
func (m memoryUsers) ListWithReportCounts(ctx context.Context) ([]*models.UserSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[uuid.UUID]int, len(m.users))
	for _, issue := range m.issues {
		counts[issue.UserID]++
	}

	result := make([]*models.UserSummary, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, &models.UserSummary{
			ID:          u.ID,
			FullName:    u.FullName,
			Email:       u.Email,
			ProfilePic:  u.ProfilePic,
			IsActive:    u.IsActive,
			CreatedAt:   u.CreatedAt,
			ReportCount: counts[u.ID],
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m memoryUsers) CountIssuesByStatus(ctx context.Context, userID uuid.UUID) (map[models.IssueStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[models.IssueStatus]int)
	for _, issue := range m.issues {
		if issue.UserID == userID {
			counts[issue.Status]++
		}
	}
	return counts, nil
}

func (m memoryUsers) UpdateProfile(ctx context.Context, id uuid.UUID, fullName, profilePic *string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user with id %s: %w", id, service.ErrNotFound)
	}
	if fullName != nil {
		u.FullName = *fullName
	}
	if profilePic != nil {
		u.ProfilePic = *profilePic
	}
	u.UpdatedAt = m.now().UTC()
	c := *u
	return &c, nil
}

func (m memoryUsers) UpdatePushToken(ctx context.Context, id uuid.UUID, token *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user with id %s: %w", id, service.ErrNotFound)
	}
	u.PushToken = token
	u.UpdatedAt = m.now().UTC()
	return nil
}

func (m memoryUsers) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.admins {
		if a.Email == admin.Email {
			return fmt.Errorf("admin with email %s already exists: %w", admin.Email, service.ErrConflict)
		}
	}
	admin.CreatedAt = m.now().UTC()
	stored := *admin
	m.admins[admin.ID] = &stored
	return nil
}

// populate копирует обращение и подставляет данные автора и администраторов.
// Вызывается под блокировкой.
func (m *MemoryStore) populate(issue *models.Issue, withProfile bool) *models.Issue {
	c := issue.Clone()
	if u, ok := m.users[issue.UserID]; ok {
		c.Reporter = &models.Reporter{
			ID:            u.ID,
			FullName:      u.FullName,
			Email:         u.Email,
			StatusChanges: u.NotificationPreferences.StatusChanges,
		}
		if u.PushToken != nil {
			c.Reporter.PushToken = *u.PushToken
		}
		if withProfile {
			c.Reporter.ProfilePic = u.ProfilePic
		}
	}
	for i := range c.Updates {
		if a, ok := m.admins[c.Updates[i].UpdatedBy]; ok {
			c.Updates[i].UpdatedByName = a.Name
		}
	}
	return c
}

func notesPtr(notes string) *string {
	if notes == "" {
		return nil
	}
	return &notes
}
