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

type userDoc struct {
	ID                      string                         `bson:"_id"`
	FullName                string                         `bson:"fullName"`
	Email                   string                         `bson:"email"`
	PasswordHash            string                         `bson:"password"`
	ProfilePic              string                         `bson:"profilePic"`
	PushToken               *string                        `bson:"pushToken"`
	NotificationPreferences models.NotificationPreferences `bson:"notificationPreferences"`
	IsActive                bool                           `bson:"isActive"`
	CreatedAt               time.Time                      `bson:"createdAt"`
	UpdatedAt               time.Time                      `bson:"updatedAt"`
}

type adminDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password"`
	CreatedAt    time.Time `bson:"createdAt"`
}

// userSummaryDoc - результат агрегации пользователей с числом обращений
type userSummaryDoc struct {
	ID          string    `bson:"_id"`
	FullName    string    `bson:"fullName"`
	Email       string    `bson:"email"`
	ProfilePic  string    `bson:"profilePic"`
	IsActive    bool      `bson:"isActive"`
	CreatedAt   time.Time `bson:"createdAt"`
	ReportCount int       `bson:"reportCount"`
}

type MongoUserRepository struct {
	db *mongo.Database
}

func NewMongoUserRepository(db *mongo.Database) service.UserRepository {
	return &MongoUserRepository{db: db}
}

func (r *MongoUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	doc := userDoc{
		ID:                      user.ID.String(),
		FullName:                user.FullName,
		Email:                   user.Email,
		PasswordHash:            user.PasswordHash,
		ProfilePic:              user.ProfilePic,
		PushToken:               user.PushToken,
		NotificationPreferences: user.NotificationPreferences,
		IsActive:                user.IsActive,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if _, err := r.db.Collection(usersCollection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user with email %s already exists: %w", user.Email, service.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var doc userDoc
	err := r.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user with id %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return doc.toModel()
}

// ListWithReportCounts собирает пользователей и число их обращений через $lookup
func (r *MongoUserRepository) ListWithReportCounts(ctx context.Context) ([]*models.UserSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         issuesCollection,
			"localField":   "_id",
			"foreignField": "userId",
			"as":           "reports",
		}}},
		{{Key: "$project", Value: bson.M{
			"fullName":    1,
			"email":       1,
			"profilePic":  1,
			"isActive":    1,
			"createdAt":   1,
			"reportCount": bson.M{"$size": "$reports"},
		}}},
		{{Key: "$sort", Value: bson.M{"createdAt": -1}}},
	}

	cursor, err := r.db.Collection(usersCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate users: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []userSummaryDoc
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	users := make([]*models.UserSummary, 0, len(rows))
	for _, row := range rows {
		id, err := uuid.Parse(row.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", row.ID, err)
		}
		users = append(users, &models.UserSummary{
			ID:          id,
			FullName:    row.FullName,
			Email:       row.Email,
			ProfilePic:  row.ProfilePic,
			IsActive:    row.IsActive,
			CreatedAt:   row.CreatedAt,
			ReportCount: row.ReportCount,
		})
	}
	return users, nil
}

func (r *MongoUserRepository) CountIssuesByStatus(ctx context.Context, userID uuid.UUID) (map[models.IssueStatus]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": userID.String()}}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.db.Collection(issuesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to count issues by status: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode status counts: %w", err)
	}

	counts := make(map[models.IssueStatus]int, len(rows))
	for _, row := range rows {
		counts[models.IssueStatus(row.Status)] = row.Count
	}
	return counts, nil
}

func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, fullName, profilePic *string) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if fullName != nil {
		set["fullName"] = *fullName
	}
	if profilePic != nil {
		set["profilePic"] = *profilePic
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDoc
	err := r.db.Collection(usersCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set}, opts).
		Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user with id %s: %w", id, service.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return doc.toModel()
}

func (r *MongoUserRepository) UpdatePushToken(ctx context.Context, id uuid.UUID, token *string) error {
	res, err := r.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{"pushToken": token, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user with id %s: %w", id, service.ErrNotFound)
	}
	return nil
}

func (r *MongoUserRepository) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	admin.CreatedAt = time.Now().UTC()
	doc := adminDoc{
		ID:           admin.ID.String(),
		Name:         admin.Name,
		Email:        admin.Email,
		PasswordHash: admin.PasswordHash,
		CreatedAt:    admin.CreatedAt,
	}
	if _, err := r.db.Collection(adminsCollection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("admin with email %s already exists: %w", admin.Email, service.ErrConflict)
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

func (d userDoc) toModel() (*models.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", d.ID, err)
	}
	return &models.User{
		ID:                      id,
		FullName:                d.FullName,
		Email:                   d.Email,
		PasswordHash:            d.PasswordHash,
		ProfilePic:              d.ProfilePic,
		PushToken:               d.PushToken,
		NotificationPreferences: d.NotificationPreferences,
		IsActive:                d.IsActive,
		CreatedAt:               d.CreatedAt,
		UpdatedAt:               d.UpdatedAt,
	}, nil
}
