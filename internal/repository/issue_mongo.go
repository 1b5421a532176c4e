package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/civic_reporting_system/internal/models"
	"github.com/shenikar/civic_reporting_system/internal/service"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	issuesCollection = "issues"
	usersCollection  = "users"
	adminsCollection = "admins"
)

// issueDoc - документ обращения; журнал изменений хранится внутри документа
type issueDoc struct {
	ID                string             `bson:"_id"`
	UserID            string             `bson:"userId"`
	Title             string             `bson:"title"`
	Description       string             `bson:"description"`
	Priority          string             `bson:"priority"`
	ImageURL          *string            `bson:"imageUrl,omitempty"`
	Location          models.Location    `bson:"location"`
	Status            string             `bson:"status"`
	IsVerified        bool               `bson:"isVerified"`
	VerificationNotes *string            `bson:"verificationNotes,omitempty"`
	AIAnalysis        *models.AIAnalysis `bson:"aiAnalysis,omitempty"`
	Updates           []updateDoc        `bson:"updates"`
	Version           int64              `bson:"version"`
	CreatedAt         time.Time          `bson:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt"`
}

type updateDoc struct {
	Message   string    `bson:"message"`
	Status    string    `bson:"status"`
	UpdatedBy string    `bson:"updatedBy"`
	Date      time.Time `bson:"date"`
}

type MongoIssueRepository struct {
	db *mongo.Database
}

func NewMongoIssueRepository(db *mongo.Database) service.IssueRepository {
	return &MongoIssueRepository{db: db}
}

// EnsureIndexes создает индексы, нужные обоим хранилищам
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string]mongo.IndexModel{
		usersCollection:  {Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		adminsCollection: {Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		issuesCollection: {Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	for name, index := range indexes {
		if _, err := db.Collection(name).Indexes().CreateOne(ctx, index); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", name, err)
		}
	}
	return nil
}

// Create сохраняет новое обращение с пустым журналом
func (r *MongoIssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	now := time.Now().UTC()
	issue.CreatedAt, issue.UpdatedAt = now, now
	issue.Version = 1

	doc := issueDoc{
		ID:          issue.ID.String(),
		UserID:      issue.UserID.String(),
		Title:       issue.Title,
		Description: issue.Description,
		Priority:    string(issue.Priority),
		ImageURL:    issue.ImageURL,
		Location:    issue.Location,
		Status:      string(issue.Status),
		IsVerified:  issue.IsVerified,
		AIAnalysis:  issue.AIAnalysis,
		Updates:     []updateDoc{},
		Version:     issue.Version,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.db.Collection(issuesCollection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("issue %s already exists: %w", issue.ID, service.ErrConflict)
		}
		return fmt.Errorf("failed to create issue: %w", err)
	}
	return nil
}

// GetByID возвращает обращение с автором и именами администраторов в журнале
func (r *MongoIssueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	var doc issueDoc
	err := r.db.Collection(issuesCollection).FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("issue with id %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get issue by id: %w", err)
	}

	issue, err := doc.toModel()
	if err != nil {
		return nil, err
	}

	reporters, err := r.reporters(ctx, []string{doc.UserID})
	if err != nil {
		return nil, err
	}
	issue.Reporter = reporters[doc.UserID]

	if err := r.resolveAdminNames(ctx, issue.Updates); err != nil {
		return nil, err
	}
	return issue, nil
}

// List возвращает сводку обращений без журнала, новые первыми
func (r *MongoIssueRepository) List(ctx context.Context, filter models.IssueFilter) ([]*models.Issue, error) {
	query := bson.M{}
	if filter.UserID != nil {
		query["userId"] = filter.UserID.String()
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"updates": 0})

	cursor, err := r.db.Collection(issuesCollection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []issueDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode issues: %w", err)
	}

	userIDs := make([]string, 0, len(docs))
	for _, d := range docs {
		userIDs = append(userIDs, d.UserID)
	}
	reporters, err := r.reporters(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	issues := make([]*models.Issue, 0, len(docs))
	for _, d := range docs {
		issue, err := d.toModel()
		if err != nil {
			return nil, err
		}
		issue.Updates = nil
		if rep, ok := reporters[d.UserID]; ok {
			summary := *rep
			summary.ProfilePic = ""
			issue.Reporter = &summary
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// ApplyTransition выполняет условное обновление одного документа: фильтр по версии и статусу,
// $push записи журнала и $inc версии в одной операции.
func (r *MongoIssueRepository) ApplyTransition(ctx context.Context, t *models.Transition) (*models.Issue, error) {
	set := bson.M{
		"status":    string(t.To),
		"updatedAt": time.Now().UTC(),
	}
	if t.Verification != nil {
		set["isVerified"] = t.Verification.IsVerified
		set["verificationNotes"] = notesPtr(t.Verification.Notes)
	}

	filter := bson.M{
		"_id":     t.IssueID.String(),
		"version": t.ExpectedVersion,
		"status":  string(t.From),
	}
	update := bson.M{
		"$set": set,
		"$push": bson.M{"updates": updateDoc{
			Message:   t.Update.Message,
			Status:    string(t.Update.Status),
			UpdatedBy: t.Update.UpdatedBy.String(),
			Date:      t.Update.Date,
		}},
		"$inc": bson.M{"version": 1},
	}

	res, err := r.db.Collection(issuesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update issue status: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, r.missOrConflict(ctx, t.IssueID, t.ExpectedVersion)
	}
	return r.reloadCommitted(ctx, t.IssueID)
}

// UpdateDetails меняет заголовок и описание с проверкой версии
func (r *MongoIssueRepository) UpdateDetails(ctx context.Context, id uuid.UUID, title, description string, expectedVersion int64) (*models.Issue, error) {
	filter := bson.M{"_id": id.String(), "version": expectedVersion}
	update := bson.M{
		"$set": bson.M{"title": title, "description": description, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	}
	res, err := r.db.Collection(issuesCollection).UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update issue: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, r.missOrConflict(ctx, id, expectedVersion)
	}
	return r.reloadCommitted(ctx, id)
}

// reloadCommitted перечитывает запись после фиксации без учета отмены запроса
func (r *MongoIssueRepository) reloadCommitted(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	issue, err := r.GetByID(context.WithoutCancel(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("issue %s: %v: %w", id, err, service.ErrNotReloaded)
	}
	return issue, nil
}

// missOrConflict различает отсутствие документа и проигранную гонку
func (r *MongoIssueRepository) missOrConflict(ctx context.Context, id uuid.UUID, expectedVersion int64) error {
	n, err := r.db.Collection(issuesCollection).CountDocuments(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("failed to check issue existence: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("issue with id %s: %w", id, service.ErrNotFound)
	}
	return fmt.Errorf("issue %s changed since version %d: %w", id, expectedVersion, service.ErrConflict)
}

// reporters загружает авторов одним запросом
func (r *MongoIssueRepository) reporters(ctx context.Context, userIDs []string) (map[string]*models.Reporter, error) {
	result := make(map[string]*models.Reporter, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	cursor, err := r.db.Collection(usersCollection).Find(ctx, bson.M{"_id": bson.M{"$in": userIDs}})
	if err != nil {
		return nil, fmt.Errorf("failed to load reporters: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reporters: %w", err)
	}
	for _, d := range docs {
		u, err := d.toModel()
		if err != nil {
			return nil, err
		}
		rep := &models.Reporter{
			ID:            u.ID,
			FullName:      u.FullName,
			Email:         u.Email,
			ProfilePic:    u.ProfilePic,
			StatusChanges: u.NotificationPreferences.StatusChanges,
		}
		if u.PushToken != nil {
			rep.PushToken = *u.PushToken
		}
		result[d.ID] = rep
	}
	return result, nil
}

func (r *MongoIssueRepository) resolveAdminNames(ctx context.Context, updates []models.Update) error {
	if len(updates) == 0 {
		return nil
	}
	ids := make([]string, 0, len(updates))
	for _, u := range updates {
		ids = append(ids, u.UpdatedBy.String())
	}

	cursor, err := r.db.Collection(adminsCollection).Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"name": 1}),
	)
	if err != nil {
		return fmt.Errorf("failed to load update authors: %w", err)
	}
	defer cursor.Close(ctx)

	var admins []adminDoc
	if err := cursor.All(ctx, &admins); err != nil {
		return fmt.Errorf("failed to decode update authors: %w", err)
	}
	names := make(map[string]string, len(admins))
	for _, a := range admins {
		names[a.ID] = a.Name
	}
	for i := range updates {
		updates[i].UpdatedByName = names[updates[i].UpdatedBy.String()]
	}
	return nil
}

func (d issueDoc) toModel() (*models.Issue, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid issue id %q: %w", d.ID, err)
	}
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q in issue %s: %w", d.UserID, d.ID, err)
	}

	issue := &models.Issue{
		ID:                id,
		UserID:            userID,
		Title:             d.Title,
		Description:       d.Description,
		Priority:          models.Priority(d.Priority),
		ImageURL:          d.ImageURL,
		Location:          d.Location,
		Status:            models.IssueStatus(d.Status),
		IsVerified:        d.IsVerified,
		VerificationNotes: d.VerificationNotes,
		AIAnalysis:        d.AIAnalysis,
		Updates:           make([]models.Update, 0, len(d.Updates)),
		Version:           d.Version,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	for _, u := range d.Updates {
		by, err := uuid.Parse(u.UpdatedBy)
		if err != nil {
			return nil, fmt.Errorf("invalid update author %q in issue %s: %w", u.UpdatedBy, d.ID, err)
		}
		issue.Updates = append(issue.Updates, models.Update{
			Message:   u.Message,
			Status:    models.IssueStatus(u.Status),
			UpdatedBy: by,
			Date:      u.Date,
		})
	}
	return issue, nil
}
