package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/lecture-notes/backend/internal/apperr"
	"github.com/ayush/lecture-notes/backend/internal/models"
)

// MongoStore handles lecture and user documents in MongoDB.
type MongoStore struct {
	lectures *mongo.Collection
	users    *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		lectures: db.Collection("lectures"),
		users:    db.Collection("users"),
	}
}

// EnsureIndexes creates the unique email index and the lookup index on pdfUrl.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users email index: %w", err)
	}
	_, err = s.lectures.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "pdfUrl", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("lectures pdfUrl index: %w", err)
	}
	return nil
}

// ── Lectures ────────────────────────────────────────────────

func (s *MongoStore) InsertLecture(ctx context.Context, l *models.Lecture) error {
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	if err := l.Validate(); err != nil {
		return apperr.DataIntegrity("lecture rejected", err)
	}
	res, err := s.lectures.InsertOne(ctx, l)
	if err != nil {
		return fmt.Errorf("mongo insert lecture: %w", err)
	}
	if id, ok := objectID(res.InsertedID); ok {
		l.ID = id
	}
	return nil
}

// ListLectures returns every lecture, newest first.
func (s *MongoStore) ListLectures(ctx context.Context) ([]models.Lecture, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.lectures.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find lectures: %w", err)
	}
	return decodeLectures(ctx, cur)
}

// FindLectureByPDFURL returns the newest lecture published under pdfURL.
func (s *MongoStore) FindLectureByPDFURL(ctx context.Context, pdfURL string) (*models.Lecture, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return decodeLecture(s.lectures.FindOne(ctx, bson.M{"pdfUrl": pdfURL}, opts))
}

func objectID(v interface{}) (primitive.ObjectID, bool) {
	oid, ok := v.(primitive.ObjectID)
	return oid, ok
}

func decodeLecture(res *mongo.SingleResult) (*models.Lecture, error) {
	var l models.Lecture
	if err := res.Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, apperr.DataIntegrity("malformed lecture document", err)
	}
	if err := l.Validate(); err != nil {
		return nil, apperr.DataIntegrity("malformed lecture document", err)
	}
	return &l, nil
}

func decodeLectures(ctx context.Context, cur *mongo.Cursor) ([]models.Lecture, error) {
	defer cur.Close(ctx)

	lectures := []models.Lecture{}
	for cur.Next(ctx) {
		var l models.Lecture
		if err := cur.Decode(&l); err != nil {
			return nil, apperr.DataIntegrity("malformed lecture document", err)
		}
		if err := l.Validate(); err != nil {
			return nil, apperr.DataIntegrity("malformed lecture document", err)
		}
		lectures = append(lectures, l)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo cursor: %w", err)
	}
	return lectures, nil
}

// ── Users ───────────────────────────────────────────────────

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	u.CreatedAt = time.Now().UTC()
	if err := u.Validate(); err != nil {
		return apperr.DataIntegrity("user rejected", err)
	}
	res, err := s.users.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate.Wrap(err)
		}
		return fmt.Errorf("mongo insert user: %w", err)
	}
	if id, ok := objectID(res.InsertedID); ok {
		u.ID = id
	}
	return nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return decodeUser(s.users.FindOne(ctx, bson.M{"email": email}))
}

// SetOTP replaces the pending one-time code of an unverified user.
func (s *MongoStore) SetOTP(ctx context.Context, email, code string, expiry time.Time) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"otp": code, "expiry_time": expiry}},
	)
	if err != nil {
		return fmt.Errorf("mongo set otp: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkVerified sets is_verified and clears the one-time code.
func (s *MongoStore) MarkVerified(ctx context.Context, email string) error {
	res, err := s.users.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{
			"$set":   bson.M{"is_verified": true},
			"$unset": bson.M{"otp": "", "expiry_time": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("mongo mark verified: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeUser(res *mongo.SingleResult) (*models.User, error) {
	var u models.User
	if err := res.Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, apperr.DataIntegrity("malformed user document", err)
	}
	if err := u.Validate(); err != nil {
		return nil, apperr.DataIntegrity("malformed user document", err)
	}
	return &u, nil
}
