package users

import (
	"context"
	"strings"

	"github.com/mvigil90/oc-friends/internal/db"
)

const existsSQL = `SELECT uid FROM ` + db.TablePrefixPlaceholder + `users WHERE uid = ?`

// Directory answers whether a user id belongs to a known account.
type Directory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// GatewayDirectory looks users up in the installation's user table.
type GatewayDirectory struct {
	db db.Gateway
}

// NewGatewayDirectory constructs a directory backed by gateway.
func NewGatewayDirectory(gateway db.Gateway) *GatewayDirectory {
	return &GatewayDirectory{db: gateway}
}

// Exists reports whether userID has an account. Blank ids never exist.
func (d *GatewayDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, nil
	}
	rows, err := d.db.Prepare(existsSQL).Query(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

var _ Directory = (*GatewayDirectory)(nil)
