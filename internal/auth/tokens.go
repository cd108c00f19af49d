package auth

import (
    "errors"
    "fmt"
    "time"

    "github.com/golang-jwt/jwt/v5"

    "github.com/bankcards/cardledger/internal/identity"
)

const (
    tokenTypeAccess  = "access"
    tokenTypeRefresh = "refresh"
    issuer           = "cardledger"
)

// ErrInvalidToken covers malformed, expired, revoked and mistyped tokens alike.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of both access and refresh tokens.
type Claims struct {
    Username string   `json:"username"`
    Roles    []string `json:"roles"`
    Version  int      `json:"ver"`
    Type     string   `json:"typ"`
    jwt.RegisteredClaims
}

func newClaims(user identity.User, tokenType string, now time.Time, ttl time.Duration) Claims {
    roles := make([]string, 0, len(user.Roles))
    for _, r := range user.Roles {
        roles = append(roles, string(r))
    }
    return Claims{
        Username: user.Username,
        Roles:    roles,
        Version:  user.TokenVersion,
        Type:     tokenType,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   user.ID,
            Issuer:    issuer,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
        },
    }
}

func sign(claims Claims, secret []byte) (string, error) {
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
    if err != nil {
        return "", fmt.Errorf("sign %s token: %w", claims.Type, err)
    }
    return signed, nil
}

func parse(token string, secret []byte, tokenType string, now func() time.Time) (Claims, error) {
    var claims Claims
    parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
        return secret, nil
    },
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
        jwt.WithIssuer(issuer),
        jwt.WithExpirationRequired(),
        jwt.WithTimeFunc(now),
    )
    if err != nil || !parsed.Valid || claims.Type != tokenType || claims.Subject == "" {
        return Claims{}, ErrInvalidToken
    }
    return claims, nil
}
