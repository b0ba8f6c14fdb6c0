package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/slidegen/internal/models"
)

// ErrTokenNotFound is returned when no token is stored for a user
var ErrTokenNotFound = errors.New("token not found")

// TokenStorage persists OAuth tokens per user
type TokenStorage interface {
	SaveToken(ctx context.Context, token *models.CanvaToken) error
	GetToken(ctx context.Context, userID string) (*models.CanvaToken, error)
	DeleteToken(ctx context.Context, userID string) error
	ListUserIDs(ctx context.Context) ([]string, error)
}
