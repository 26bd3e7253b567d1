package user

import (
	"context"
	"errors"
	"time"
)

// Repository is the persistence contract for users.
type Repository interface {
	Find(ctx context.Context, chatID int64) (User, bool, error)
	Upsert(ctx context.Context, u User) (User, error)
}

var ErrInvalidUser = errors.New("user: invalid user")

// Service manages chat-platform identities.
//
// Invariant: a user row exists before any balance-affecting operation for that
// chat id. Wallet creation itself is owned by the wallet service.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Ensure returns the user for chatID, creating it on first interaction.
// Display metadata is refreshed on every call; the identity key never changes.
func (s *Service) Ensure(ctx context.Context, chatID int64, displayName, username string) (User, error) {
	if chatID == 0 {
		return User{}, ErrInvalidUser
	}

	existing, ok, err := s.repo.Find(ctx, chatID)
	if err != nil {
		return User{}, err
	}

	u := User{
		ChatID:      chatID,
		DisplayName: displayName,
		Username:    username,
		CreatedAt:   s.clock().UTC(),
	}
	if ok {
		u.CreatedAt = existing.CreatedAt
		if displayName == "" {
			u.DisplayName = existing.DisplayName
		}
		if username == "" {
			u.Username = existing.Username
		}
	}
	return s.repo.Upsert(ctx, u)
}

// Find looks a user up without creating it.
func (s *Service) Find(ctx context.Context, chatID int64) (User, bool, error) {
	if chatID == 0 {
		return User{}, false, ErrInvalidUser
	}
	return s.repo.Find(ctx, chatID)
}
