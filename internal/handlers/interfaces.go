package handlers

import (
	"context"

	"github.com/mvigil90/oc-friends/internal/models"
)

// FriendshipStore captures the friendship operations required by the friend handlers.
type FriendshipStore interface {
	Find(ctx context.Context, userA, userB string) (models.Friendship, error)
	FindAllFriendsByUser(ctx context.Context, userID string) ([]string, error)
	FindAllRecipientFriendshipRequestsByUser(ctx context.Context, userID string) ([]string, error)
	FindAllRequesterFriendshipRequestsByUser(ctx context.Context, userID string) ([]string, error)
	Request(ctx context.Context, f *models.Friendship) (bool, error)
	Accept(ctx context.Context, f *models.Friendship) (bool, error)
	Delete(ctx context.Context, f *models.Friendship) (bool, error)
}

// UserDirectory resolves whether a user id names a known account.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
