package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/hatchmart/api/internal/domain"
	pfirestore "github.com/hatchmart/api/internal/platform/firestore"
	"github.com/hatchmart/api/internal/repositories"
)

const usersCollection = "users"

type userDocument struct {
	Email        string    `firestore:"email"`
	EmailLower   string    `firestore:"emailLower"`
	DisplayName  string    `firestore:"displayName"`
	PasswordHash string    `firestore:"passwordHash"`
	Role         string    `firestore:"role"`
	Active       bool      `firestore:"active"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// UserRepository persists user accounts in Firestore. Email lookups go
// through a lowercased shadow field so sign-in is case insensitive.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		base: pfirestore.NewBaseRepository[userDocument](provider, usersCollection, nil, nil),
	}, nil
}

// Insert stores a new user, failing when the ID already exists.
func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	if r == nil || r.base == nil {
		return errors.New("user repository not initialised")
	}
	id := strings.TrimSpace(user.ID)
	if id == "" {
		return errors.New("user repository: id is required")
	}
	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeUserDocument(user)); err != nil {
		return pfirestore.WrapError("users.insert", err)
	}
	return nil
}

// Update overwrites the stored user.
func (r *UserRepository) Update(ctx context.Context, user domain.User) error {
	if r == nil || r.base == nil {
		return errors.New("user repository not initialised")
	}
	id := strings.TrimSpace(user.ID)
	if id == "" {
		return errors.New("user repository: id is required")
	}
	if _, err := r.base.Set(ctx, id, encodeUserDocument(user)); err != nil {
		return err
	}
	return nil
}

// FindByID loads a single user.
func (r *UserRepository) FindByID(ctx context.Context, id string) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.User{}, err
	}
	return decodeUserDocument(doc.ID, doc.Data), nil
}

// FindByEmail resolves a user by email, case insensitively. A missing user
// surfaces as a not-found repository error.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	lowered := strings.ToLower(strings.TrimSpace(email))
	if lowered == "" {
		return domain.User{}, errors.New("user repository: email is required")
	}

	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return domain.User{}, err
	}

	iter := coll.Query.Where("emailLower", "==", lowered).Limit(1).Documents(ctx)
	defer iter.Stop()

	snapshot, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.User{}, pfirestore.WrapError("users.findbyemail", status.Error(codes.NotFound, "user not found"))
	}
	if err != nil {
		return domain.User{}, pfirestore.WrapError("users.findbyemail", err)
	}

	var doc userDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.User{}, fmt.Errorf("firestore user decode %s: %w", snapshot.Ref.ID, err)
	}
	return decodeUserDocument(snapshot.Ref.ID, doc), nil
}

// List returns users newest first with cursor pagination. Search matches an
// email prefix; role and staff filters narrow the result set.
func (r *UserRepository) List(ctx context.Context, filter repositories.UserListFilter) (domain.CursorPage[domain.User], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.User]{}, errors.New("user repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = 20
	}

	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return domain.CursorPage[domain.User]{}, err
	}

	query := coll.Query
	if filter.Role != nil {
		query = query.Where("role", "==", string(*filter.Role))
	} else if filter.OnlyStaff {
		query = query.Where("role", "in", []string{string(domain.RoleStaff), string(domain.RoleAdmin)})
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	if search != "" {
		query = query.
			Where("emailLower", ">=", search).
			Where("emailLower", "<", search+"").
			OrderBy("emailLower", firestore.Asc).
			Limit(limit)
	} else {
		query = query.
			OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc).
			Limit(limit + 1)
		if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
			createdAt, docID, err := decodeListToken(token)
			if err != nil {
				return domain.CursorPage[domain.User]{}, fmt.Errorf("user repository: invalid page token: %w", err)
			}
			query = query.StartAfter(createdAt, docID)
		}
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	users := make([]domain.User, 0, limit)
	var nextToken string
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.User]{}, pfirestore.WrapError("users.list", err)
		}
		var doc userDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.User]{}, fmt.Errorf("firestore user decode %s: %w", snapshot.Ref.ID, err)
		}
		if search == "" && len(users) == limit {
			last := users[len(users)-1]
			nextToken = encodeListToken(last.CreatedAt, last.ID)
			break
		}
		users = append(users, decodeUserDocument(snapshot.Ref.ID, doc))
	}

	return domain.CursorPage[domain.User]{Items: users, NextPageToken: nextToken}, nil
}

// Count reports the total number of users.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("user repository not initialised")
	}
	coll, err := r.base.CollectionRef(ctx)
	if err != nil {
		return 0, err
	}
	return countDocuments(ctx, coll.Query)
}

func encodeUserDocument(user domain.User) userDocument {
	email := strings.TrimSpace(user.Email)
	return userDocument{
		Email:        email,
		EmailLower:   strings.ToLower(email),
		DisplayName:  strings.TrimSpace(user.DisplayName),
		PasswordHash: user.PasswordHash,
		Role:         string(user.Role),
		Active:       user.Active,
		CreatedAt:    user.CreatedAt.UTC(),
		UpdatedAt:    user.UpdatedAt.UTC(),
	}
}

func decodeUserDocument(id string, doc userDocument) domain.User {
	return domain.User{
		ID:           id,
		Email:        doc.Email,
		DisplayName:  doc.DisplayName,
		PasswordHash: doc.PasswordHash,
		Role:         domain.UserRole(doc.Role),
		Active:       doc.Active,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

var _ repositories.UserRepository = (*UserRepository)(nil)
