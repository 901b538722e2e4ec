package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/jurubahasa/server/domain/entities"
	"github.com/satriahrh/jurubahasa/server/domain/repositories"
)

const sessionsCollection = "sessions"

// SessionRepository implements repositories.SessionRepository on MongoDB.
// Messages are only ever added with $push so earlier entries are never rewritten.
type SessionRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new MongoDB session repository
func NewSessionRepository(db *mongo.Database, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		collection: db.Collection(sessionsCollection),
		logger:     logger,
	}
}

// EnsureIndexes creates the indexes used by cleanup
func (r *SessionRepository) EnsureIndexes(ctx context.Context) error {
	statusExpiresIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "expires_at", Value: 1},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{statusExpiresIndex}); err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}
	r.logger.Info("Session indexes created successfully")
	return nil
}

// Create implements repositories.SessionRepository
func (r *SessionRepository) Create(ctx context.Context, session *entities.Session) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, session); err != nil {
		r.logger.Error("Failed to create session", zap.Error(err), zap.String("sessionID", session.ID))
		return fmt.Errorf("failed to create session: %w", err)
	}

	r.logger.Info("Session created", zap.String("sessionID", session.ID))
	return nil
}

// GetByID implements repositories.SessionRepository
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	if id == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	var session entities.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	return &session, nil
}

// AppendTurn implements repositories.SessionRepository
func (r *SessionRepository) AppendTurn(ctx context.Context, id string, digest string, messages ...entities.Message) error {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session.IsExpired() {
		return repositories.ErrSessionExpired
	}

	// reuse the entity rules for timestamps, then write only the changed fields
	session.AppendMessages(messages...)
	session.MarkProcessed(digest)

	set := bson.M{
		"last_clip_digest": session.LastClipDigest,
		"last_active_at":   session.LastActiveAt,
		"expires_at":       session.ExpiresAt,
	}
	update := bson.M{"$set": set}
	if len(messages) > 0 {
		set["last_message_at"] = session.LastMessageAt
		update["$push"] = bson.M{"messages": bson.M{"$each": messages}}
	}

	filter := bson.M{
		"_id":    id,
		"status": entities.SessionStatusActive,
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to append turn", zap.Error(err), zap.String("sessionID", id))
		return fmt.Errorf("failed to append turn: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrSessionExpired
	}

	r.logger.Debug("Turn appended",
		zap.String("sessionID", id),
		zap.Int("messages", len(messages)))
	return nil
}

// Terminate implements repositories.SessionRepository
func (r *SessionRepository) Terminate(ctx context.Context, id string) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"status":         entities.SessionStatusTerminated,
			"last_active_at": now,
			"expires_at":     now,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to terminate session: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrSessionNotFound
	}

	r.logger.Info("Session terminated", zap.String("sessionID", id))
	return nil
}

// ExpireSessions implements repositories.SessionRepository
func (r *SessionRepository) ExpireSessions(ctx context.Context) (int64, error) {
	filter := bson.M{
		"status":     entities.SessionStatusActive,
		"expires_at": bson.M{"$lt": time.Now()},
	}

	update := bson.M{
		"$set": bson.M{
			"status": entities.SessionStatusExpired,
		},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update, options.Update())
	if err != nil {
		r.logger.Error("Failed to expire sessions", zap.Error(err))
		return 0, err
	}

	if result.ModifiedCount > 0 {
		r.logger.Info("Expired sessions", zap.Int64("count", result.ModifiedCount))
	}

	return result.ModifiedCount, nil
}

// PurgeSessions implements repositories.SessionRepository
func (r *SessionRepository) PurgeSessions(ctx context.Context, before time.Time) ([]string, error) {
	filter := bson.M{
		"status":     bson.M{"$ne": entities.SessionStatusActive},
		"expires_at": bson.M{"$lt": before},
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to find purgeable sessions: %w", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read purgeable sessions: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	// the status filter stays so a session revived in between is kept
	filter["_id"] = bson.M{"$in": ids}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to purge sessions: %w", err)
	}

	r.logger.Info("Purged sessions", zap.Int64("count", result.DeletedCount))
	return ids, nil
}
