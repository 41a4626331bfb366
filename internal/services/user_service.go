package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	domain "github.com/hatchmart/api/internal/domain"
	"github.com/hatchmart/api/internal/platform/auth"
	"github.com/hatchmart/api/internal/repositories"
)

const (
	userIDPrefix      = "usr_"
	minPasswordLength = 8
	maxPasswordLength = 72 // bcrypt input limit
)

var (
	// ErrUserInvalidInput signals the caller provided invalid data.
	ErrUserInvalidInput = errors.New("user: invalid input")
	// ErrUserEmailTaken rejects registration with an email already in use.
	ErrUserEmailTaken = errors.New("user: email already registered")
	// ErrUserInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrUserInvalidCredentials = errors.New("user: invalid credentials")
	// ErrUserNotFound indicates the account does not exist.
	ErrUserNotFound = errors.New("user: not found")
	// ErrUserDisabled rejects sign-in for deactivated accounts.
	ErrUserDisabled = errors.New("user: account disabled")
)

// TokenIssuer signs access tokens for authenticated identities.
type TokenIssuer interface {
	Issue(identity auth.Identity) (string, time.Time, error)
}

// UserServiceDeps bundles collaborators required to construct the user service.
type UserServiceDeps struct {
	Users       repositories.UserRepository
	Orders      repositories.OrderRepository
	Tokens      TokenIssuer
	Clock       func() time.Time
	IDGenerator func() string
	BcryptCost  int
}

type userService struct {
	users      repositories.UserRepository
	orders     repositories.OrderRepository
	tokens     TokenIssuer
	clock      func() time.Time
	newID      func() string
	bcryptCost int
}

// NewUserService wires dependencies into a concrete UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("user service: order repository is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("user service: token issuer is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &userService{
		users:      deps.Users,
		orders:     deps.Orders,
		tokens:     deps.Tokens,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		bcryptCost: cost,
	}, nil
}

// Register creates a customer account and signs the first session token.
func (s *userService) Register(ctx context.Context, cmd RegisterCommand) (AuthSession, error) {
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if !validEmail(email) {
		return AuthSession{}, fmt.Errorf("%w: email is invalid", ErrUserInvalidInput)
	}
	if len(cmd.Password) < minPasswordLength {
		return AuthSession{}, fmt.Errorf("%w: password must be at least %d characters", ErrUserInvalidInput, minPasswordLength)
	}
	if len(cmd.Password) > maxPasswordLength {
		return AuthSession{}, fmt.Errorf("%w: password must be at most %d characters", ErrUserInvalidInput, maxPasswordLength)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return AuthSession{}, fmt.Errorf("%w: %s", ErrUserEmailTaken, email)
	} else if !isRepoNotFound(err) {
		return AuthSession{}, s.mapRepositoryError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), s.bcryptCost)
	if err != nil {
		return AuthSession{}, fmt.Errorf("user: hash password: %w", err)
	}

	now := s.clock()
	user := domain.User{
		ID:           userIDPrefix + s.newID(),
		Email:        email,
		DisplayName:  strings.TrimSpace(cmd.DisplayName),
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Insert(ctx, user); err != nil {
		return AuthSession{}, s.mapRepositoryError(err)
	}

	return s.newSession(user)
}

// Authenticate verifies credentials and signs a session token. Unknown emails
// and wrong passwords return the same error so callers cannot probe accounts.
func (s *userService) Authenticate(ctx context.Context, cmd LoginCommand) (AuthSession, error) {
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if email == "" || cmd.Password == "" {
		return AuthSession{}, fmt.Errorf("%w: email and password are required", ErrUserInvalidInput)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if isRepoNotFound(err) {
			return AuthSession{}, ErrUserInvalidCredentials
		}
		return AuthSession{}, s.mapRepositoryError(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(cmd.Password)); err != nil {
		return AuthSession{}, ErrUserInvalidCredentials
	}
	if !user.Active {
		return AuthSession{}, fmt.Errorf("%w: %s", ErrUserDisabled, user.ID)
	}

	return s.newSession(user)
}

func (s *userService) GetProfile(ctx context.Context, userID string) (User, error) {
	id := strings.TrimSpace(userID)
	if id == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return User{}, s.mapRepositoryError(err)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, query ListUsersQuery) (domain.CursorPage[UserAccount], error) {
	page, err := s.users.List(ctx, repositories.UserListFilter{
		Search:     strings.TrimSpace(query.Search),
		Role:       query.Role,
		OnlyStaff:  query.OnlyStaff,
		Pagination: query.Pagination,
	})
	if err != nil {
		return domain.CursorPage[UserAccount]{}, s.mapRepositoryError(err)
	}

	ids := make([]string, 0, len(page.Items))
	for _, user := range page.Items {
		ids = append(ids, user.ID)
	}
	stats, err := s.orders.StatsForUsers(ctx, ids)
	if err != nil {
		return domain.CursorPage[UserAccount]{}, s.mapRepositoryError(err)
	}

	accounts := make([]UserAccount, 0, len(page.Items))
	for _, user := range page.Items {
		account := UserAccount{User: user}
		if entry, ok := stats[user.ID]; ok {
			account.OrderCount = entry.OrderCount
			account.TotalSpentCents = entry.TotalSpentCents
		}
		accounts = append(accounts, account)
	}

	return domain.CursorPage[UserAccount]{Items: accounts, NextPageToken: page.NextPageToken}, nil
}

func (s *userService) SetUserRole(ctx context.Context, cmd SetUserRoleCommand) (User, error) {
	switch cmd.Role {
	case domain.RoleCustomer, domain.RoleStaff, domain.RoleAdmin:
	default:
		return User{}, fmt.Errorf("%w: unknown role %q", ErrUserInvalidInput, cmd.Role)
	}

	user, err := s.GetProfile(ctx, cmd.UserID)
	if err != nil {
		return User{}, err
	}

	user.Role = cmd.Role
	user.UpdatedAt = s.clock()

	if err := s.users.Update(ctx, user); err != nil {
		return User{}, s.mapRepositoryError(err)
	}
	return user, nil
}

func (s *userService) SetUserActive(ctx context.Context, cmd SetUserActiveCommand) (User, error) {
	user, err := s.GetProfile(ctx, cmd.UserID)
	if err != nil {
		return User{}, err
	}

	user.Active = cmd.Active
	user.UpdatedAt = s.clock()

	if err := s.users.Update(ctx, user); err != nil {
		return User{}, s.mapRepositoryError(err)
	}
	return user, nil
}

func (s *userService) newSession(user domain.User) (AuthSession, error) {
	token, expiresAt, err := s.tokens.Issue(auth.Identity{
		UID:   user.ID,
		Email: user.Email,
		Roles: []string{string(user.Role)},
	})
	if err != nil {
		return AuthSession{}, fmt.Errorf("user: issue token: %w", err)
	}
	return AuthSession{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domainPart := email[at+1:]
	return strings.Contains(domainPart, ".") && !strings.ContainsAny(email, " \t")
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func (s *userService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrUserNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrUserEmailTaken, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("user: repository unavailable: %w", err)
		}
	}

	return err
}
