package canva

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/common"
	"github.com/ternarybob/slidegen/internal/interfaces"
	"github.com/ternarybob/slidegen/internal/models"
	"golang.org/x/oauth2"
)

var (
	// ErrNotConfigured is returned when no client id is configured
	ErrNotConfigured = errors.New("canva client_id is not configured")

	// ErrMissingCode is returned by Exchange when the callback carries no code
	ErrMissingCode = errors.New("missing authorization code")
)

// DefaultUserID is used as OAuth state when a caller names no user
const DefaultUserID = "default"

// OAuthService relays the Canva authorization code flow and persists tokens per user
type OAuthService struct {
	config *oauth2.Config
	tokens interfaces.TokenStorage
	client *http.Client
	logger arbor.ILogger
}

// NewOAuthService builds the oauth2 config from [canva]. client is used for the
// token exchange; nil selects http.DefaultClient.
func NewOAuthService(cfg common.CanvaConfig, tokens interfaces.TokenStorage, client *http.Client, logger arbor.ILogger) *OAuthService {
	return &OAuthService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tokens: tokens,
		client: client,
		logger: logger,
	}
}

// AuthCodeURL returns the authorize URL carrying userID as state
func (s *OAuthService) AuthCodeURL(userID string) (string, error) {
	if s.config.ClientID == "" {
		return "", ErrNotConfigured
	}
	return s.config.AuthCodeURL(stateFor(userID)), nil
}

// Exchange trades code for a token and stores it under state
func (s *OAuthService) Exchange(ctx context.Context, code, state string) (*models.CanvaToken, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrMissingCode
	}
	if s.config.ClientID == "" {
		return nil, ErrNotConfigured
	}

	if s.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	}

	tok, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	token := &models.CanvaToken{
		UserID:       stateFor(state),
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		token.Scope = scope
	}

	if err := s.tokens.SaveToken(ctx, token); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", token.UserID).Msg("Canva account connected")
	return token, nil
}

// Token returns the stored token for userID or interfaces.ErrTokenNotFound
func (s *OAuthService) Token(ctx context.Context, userID string) (*models.CanvaToken, error) {
	return s.tokens.GetToken(ctx, stateFor(userID))
}

// Disconnect forgets the stored token for userID
func (s *OAuthService) Disconnect(ctx context.Context, userID string) error {
	userID = stateFor(userID)
	if err := s.tokens.DeleteToken(ctx, userID); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Msg("Canva account disconnected")
	return nil
}

func stateFor(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return DefaultUserID
	}
	return userID
}
