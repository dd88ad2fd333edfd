package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vpnrotator/internal/support"
)

const (
	jwtSecretEnv = "API_JWT_SECRET"
	issuer       = "vpnrotator"

	RoleOperator = "operator"
	RoleViewer   = "viewer"

	DefaultTokenTTL = 24 * time.Hour
)

var (
	ErrAuthDisabled = errors.New("auth: " + jwtSecretEnv + " is not set")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Enabled reports whether control endpoints require a token.
func Enabled() bool {
	return secret() != ""
}

func secret() string {
	return strings.TrimSpace(support.GetEnv(jwtSecretEnv, ""))
}

func GenerateJWT(subject, role string, ttl time.Duration) (string, error) {
	key := secret()
	if key == "" {
		return "", ErrAuthDisabled
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  issuer,
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}

func ValidateJWT(tokenString string) (jwt.MapClaims, error) {
	key := secret()
	if key == "" {
		return nil, ErrAuthDisabled
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(key), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func RoleFromClaims(claims jwt.MapClaims) string {
	role, _ := claims["role"].(string)
	return role
}
