package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/degap/degap-api/internal/model"
)

// ErrNotFound is returned when no user matches the query.
var ErrNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned when a create or update collides with the
// unique email index.
var ErrDuplicateEmail = errors.New("email already in use")

// UserRepository defines the persistence operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByProvider(ctx context.Context, provider, providerID string) (*model.User, error)
	GetByVerifyTokenHash(ctx context.Context, tokenHash string) (*model.User, error)
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*model.User, error)
	Update(ctx context.Context, id string, params UpdateUserParams) (*model.User, error)
	PushRefreshSession(ctx context.Context, id string, session model.RefreshSession, limit int) error
	RemoveRefreshSession(ctx context.Context, id, tokenHash string) error
	ReplaceRefreshSessions(ctx context.Context, id string, sessions model.RefreshSessionList) error
	Delete(ctx context.Context, id string) error
}

// UpdateUserParams defines the optional fields for updating a user.
// Only fields that are not nil will be updated.
type UpdateUserParams struct {
	Name          *string
	Bio           *string
	AvatarURL     *string
	PasswordHash  *string
	Provider      *string
	ProviderID    *string
	Status        *string
	EmailVerified *bool

	VerifyTokenHash      *string
	VerifyTokenExpiresAt *time.Time
	ResetTokenHash       *string
	ResetTokenExpiresAt  *time.Time

	// Clear flags unset a token slot and its expiry together.
	ClearVerifyToken bool
	ClearResetToken  bool
}

const userCollection = "users"

type userMongoRepository struct {
	db *mongo.Database
}

// NewUserMongoRepository creates the mongo-backed user repository and ensures
// the indexes the auth flows rely on.
func NewUserMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) UserRepository {
	collection := db.Collection(userCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "provider", Value: 1}, {Key: "provider_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"provider_id": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "verify_token_hash", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "reset_token_hash", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create user indexes")
	}

	return &userMongoRepository{db: db}
}

func (r *userMongoRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.RefreshSessions == nil {
		user.RefreshSessions = model.RefreshSessionList{}
	}

	result, err := r.db.Collection(userCollection).InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEmail
		}

		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		user.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return user, nil
}

func (r *userMongoRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *userMongoRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *userMongoRepository) GetByProvider(ctx context.Context, provider, providerID string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"provider": provider, "provider_id": providerID})
}

func (r *userMongoRepository) GetByVerifyTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	return r.findOne(ctx, bson.M{
		"verify_token_hash":       tokenHash,
		"verify_token_expires_at": bson.M{"$gt": time.Now()},
	})
}

func (r *userMongoRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	return r.findOne(ctx, bson.M{
		"reset_token_hash":       tokenHash,
		"reset_token_expires_at": bson.M{"$gt": time.Now()},
	})
}

func (r *userMongoRepository) Update(
	ctx context.Context,
	id string,
	params UpdateUserParams,
) (*model.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	setMap := bson.M{}
	unsetMap := bson.M{}

	if params.Name != nil {
		setMap["name"] = *params.Name
	}
	if params.Bio != nil {
		setMap["bio"] = *params.Bio
	}
	if params.AvatarURL != nil {
		setMap["avatar_url"] = *params.AvatarURL
	}
	if params.PasswordHash != nil {
		setMap["password_hash"] = *params.PasswordHash
	}
	if params.Provider != nil {
		setMap["provider"] = *params.Provider
	}
	if params.ProviderID != nil {
		setMap["provider_id"] = *params.ProviderID
	}
	if params.Status != nil {
		setMap["status"] = *params.Status
	}
	if params.EmailVerified != nil {
		setMap["email_verified"] = *params.EmailVerified
	}
	if params.VerifyTokenHash != nil {
		setMap["verify_token_hash"] = *params.VerifyTokenHash
	}
	if params.VerifyTokenExpiresAt != nil {
		setMap["verify_token_expires_at"] = *params.VerifyTokenExpiresAt
	}
	if params.ResetTokenHash != nil {
		setMap["reset_token_hash"] = *params.ResetTokenHash
	}
	if params.ResetTokenExpiresAt != nil {
		setMap["reset_token_expires_at"] = *params.ResetTokenExpiresAt
	}
	if params.ClearVerifyToken {
		unsetMap["verify_token_hash"] = ""
		unsetMap["verify_token_expires_at"] = ""
	}
	if params.ClearResetToken {
		unsetMap["reset_token_hash"] = ""
		unsetMap["reset_token_expires_at"] = ""
	}

	if len(setMap) == 0 && len(unsetMap) == 0 {
		return nil, errors.New("no user fields to update")
	}

	setMap["updated_at"] = time.Now()

	update := bson.M{"$set": setMap}
	if len(unsetMap) > 0 {
		update["$unset"] = unsetMap
	}

	result := r.db.Collection(userCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}

		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

// PushRefreshSession appends one session and trims the list to the newest
// limit entries in a single update, so concurrent logins on the same account
// never overwrite each other's entry.
func (r *userMongoRepository) PushRefreshSession(
	ctx context.Context,
	id string,
	session model.RefreshSession,
	limit int,
) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	result, err := r.db.Collection(userCollection).UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{
			"$push": bson.M{"refresh_sessions": bson.M{
				"$each":  []model.RefreshSession{session},
				"$slice": -limit,
			}},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// RemoveRefreshSession pulls the entry with the given token hash in a single
// update. Pulling an absent hash is not an error.
func (r *userMongoRepository) RemoveRefreshSession(ctx context.Context, id, tokenHash string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	result, err := r.db.Collection(userCollection).UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{
			"$pull": bson.M{"refresh_sessions": bson.M{"token_hash": tokenHash}},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *userMongoRepository) ReplaceRefreshSessions(
	ctx context.Context,
	id string,
	sessions model.RefreshSessionList,
) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	if sessions == nil {
		sessions = model.RefreshSessionList{}
	}

	result, err := r.db.Collection(userCollection).UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"refresh_sessions": sessions, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *userMongoRepository) Delete(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	result := r.db.Collection(userCollection).FindOneAndDelete(ctx, bson.M{"_id": objectID})
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return ErrNotFound
		}

		return result.Err()
	}

	return nil
}

func (r *userMongoRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	result := r.db.Collection(userCollection).FindOne(ctx, filter)
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}

		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}
