package auth

import (
    "context"
    "time"

    "github.com/bankcards/cardledger/internal/config"
    "github.com/bankcards/cardledger/internal/identity"
)

// Service issues and verifies JWTs for users of the identity directory.
type Service struct {
    users         *identity.Service
    accessSecret  []byte
    refreshSecret []byte
    accessTTL     time.Duration
    refreshTTL    time.Duration
    now           func() time.Time
}

func NewService(cfg config.Config, users *identity.Service) *Service {
    return &Service{
        users:         users,
        accessSecret:  []byte(cfg.JWTSecret),
        refreshSecret: []byte(cfg.RefreshSecret),
        accessTTL:     cfg.AccessTokenTTL,
        refreshTTL:    cfg.RefreshTokenTTL,
        now:           time.Now,
    }
}

type TokenPair struct {
    AccessToken  string `json:"access_token"`
    RefreshToken string `json:"refresh_token"`
    TokenType    string `json:"token_type"`
    ExpiresIn    int64  `json:"expires_in"`
}

// Login validates credentials (by delegating to identity.Service) and issues tokens.
func (s *Service) Login(ctx context.Context, login, password string) (identity.User, TokenPair, error) {
    user, err := s.users.Authenticate(ctx, login, password)
    if err != nil {
        return identity.User{}, TokenPair{}, err
    }
    pair, err := s.Issue(user)
    if err != nil {
        return identity.User{}, TokenPair{}, err
    }
    return user, pair, nil
}

// Issue signs a fresh access and refresh token for user.
func (s *Service) Issue(user identity.User) (TokenPair, error) {
    now := s.now()
    access, err := sign(newClaims(user, tokenTypeAccess, now, s.accessTTL), s.accessSecret)
    if err != nil {
        return TokenPair{}, err
    }
    refresh, err := sign(newClaims(user, tokenTypeRefresh, now, s.refreshTTL), s.refreshSecret)
    if err != nil {
        return TokenPair{}, err
    }
    return TokenPair{
        AccessToken:  access,
        RefreshToken: refresh,
        TokenType:    "Bearer",
        ExpiresIn:    int64(s.accessTTL.Seconds()),
    }, nil
}

// Refresh verifies the refresh token and rotates both tokens.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
    claims, err := parse(refreshToken, s.refreshSecret, tokenTypeRefresh, s.now)
    if err != nil {
        return TokenPair{}, err
    }
    user, err := s.current(ctx, claims)
    if err != nil {
        return TokenPair{}, err
    }
    return s.Issue(user)
}

// Authorize resolves an access token to the user it was issued for. Tokens
// issued before the last logout or password change are rejected.
func (s *Service) Authorize(ctx context.Context, accessToken string) (identity.User, error) {
    claims, err := parse(accessToken, s.accessSecret, tokenTypeAccess, s.now)
    if err != nil {
        return identity.User{}, err
    }
    return s.current(ctx, claims)
}

// Logout increments token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, userID string) error {
    return s.users.BumpTokenVersion(ctx, userID)
}

func (s *Service) current(ctx context.Context, claims Claims) (identity.User, error) {
    user, err := s.users.FindByID(ctx, claims.Subject)
    if err != nil || !user.Enabled || user.TokenVersion != claims.Version {
        return identity.User{}, ErrInvalidToken
    }
    return user, nil
}
