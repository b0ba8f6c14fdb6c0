package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/interfaces"
	"github.com/ternarybob/slidegen/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// TokenStorage keeps Canva OAuth tokens keyed by user id
type TokenStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

func NewTokenStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TokenStorage {
	return &TokenStorage{db: db, logger: logger}
}

func normalizeUserID(userID string) string {
	return strings.TrimSpace(userID)
}

func (s *TokenStorage) SaveToken(ctx context.Context, token *models.CanvaToken) error {
	if token == nil {
		return fmt.Errorf("token is required")
	}
	token.UserID = normalizeUserID(token.UserID)
	if token.UserID == "" {
		return fmt.Errorf("token user_id is required")
	}

	now := time.Now()
	var existing models.CanvaToken
	err := s.db.Store().Get(token.UserID, &existing)
	switch {
	case err == nil:
		token.CreatedAt = existing.CreatedAt
	case errors.Is(err, badgerhold.ErrNotFound):
		token.CreatedAt = now
	default:
		return fmt.Errorf("failed to read existing token: %w", err)
	}
	token.UpdatedAt = now

	if err := s.db.Store().Upsert(token.UserID, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	s.logger.Debug().Str("user_id", token.UserID).Msg("Canva token stored")
	return nil
}

func (s *TokenStorage) GetToken(ctx context.Context, userID string) (*models.CanvaToken, error) {
	var token models.CanvaToken
	if err := s.db.Store().Get(normalizeUserID(userID), &token); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &token, nil
}

func (s *TokenStorage) DeleteToken(ctx context.Context, userID string) error {
	if err := s.db.Store().Delete(normalizeUserID(userID), &models.CanvaToken{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

func (s *TokenStorage) ListUserIDs(ctx context.Context) ([]string, error) {
	var tokens []models.CanvaToken
	if err := s.db.Store().Find(&tokens, nil); err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	ids := make([]string, len(tokens))
	for i, t := range tokens {
		ids[i] = t.UserID
	}
	sort.Strings(ids)
	return ids, nil
}
