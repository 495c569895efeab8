package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/planpal/social-system/internal/core/domain"
)

const collectionProfiles = "profiles"

// ProfileRepository implements ports.ProfileRepository on MongoDB. Profile
// documents are keyed by the identity-provider id (string _id), and the
// friends relation is mutated exclusively through $addToSet/$pull so that
// concurrent edits to the same document cannot lose additions.
type ProfileRepository struct {
	col *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{col: db.Collection(collectionProfiles)}
}

// Create inserts a new profile document.
func (r *ProfileRepository) Create(ctx context.Context, p *domain.UserProfile) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert profile %s: %w", p.ID, domain.ErrUsernameTaken)
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// Get retrieves a profile by identity id.
func (r *ProfileRepository) Get(ctx context.Context, id string) (*domain.UserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var p domain.UserProfile
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &p, nil
}

// Merge patches only the given fields via $set, an explicit merge rather
// than an overwrite: untouched fields, the extension bag included, survive.
func (r *ProfileRepository) Merge(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("merge profile: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// FindByUsername resolves a canonical username to at most one profile.
func (r *ProfileRepository) FindByUsername(ctx context.Context, usernameLower string) (*domain.UserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var p domain.UserProfile
	if err := r.col.FindOne(ctx, bson.M{"username_lower": usernameLower}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, fmt.Errorf("find profile by username: %w", err)
	}
	return &p, nil
}

// FindByIDs resolves a batch of ids with one $in query. Missing ids are
// skipped. Callers page the batches; no ordering is guaranteed here.
func (r *ProfileRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.UserProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find profiles by ids: %w", err)
	}
	defer cur.Close(ctx)

	var profiles []*domain.UserProfile
	for cur.Next(ctx) {
		var p domain.UserProfile
		if err := cur.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
		profiles = append(profiles, &p)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}

// AddFriend appends friendID with $addToSet, the atomic set-union that
// closes the read-modify-write race on concurrent adds.
func (r *ProfileRepository) AddFriend(ctx context.Context, id, friendID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$addToSet": bson.M{"friends": friendID},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("add friend: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// RemoveFriend removes friendID with $pull. Idempotent.
func (r *ProfileRepository) RemoveFriend(ctx context.Context, id, friendID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$pull": bson.M{"friends": friendID},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// Scan walks every profile document with a cursor, fetching only the fields
// the reconciliation pass needs.
func (r *ProfileRepository) Scan(ctx context.Context, fn func(*domain.UserProfile) error) error {
	opts := options.Find().SetProjection(bson.M{"_id": 1, "friends": 1, "username_lower": 1})
	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return fmt.Errorf("scan profiles: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var p domain.UserProfile
		if err := cur.Decode(&p); err != nil {
			return fmt.Errorf("decode profile: %w", err)
		}
		if err := fn(&p); err != nil {
			return err
		}
	}
	return cur.Err()
}

// EnsureIndexes creates the indexes the lookup paths rely on. The unique
// index on username_lower backs the lookup-before-write uniqueness check.
func (r *ProfileRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username_lower", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "friends", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
