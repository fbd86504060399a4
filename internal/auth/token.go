package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roomloop/server/internal/models"
)

// The server never issues credentials to end users; the meeting product's web
// tier mints a short-lived join token when a user opens a room, and this
// package only verifies it and extracts the identity tuple.

var ErrInvalidToken = errors.New("invalid join token")

// JoinClaims is the signed identity a connecting client presents.
type JoinClaims struct {
	DisplayName string      `json:"display_name"`
	AvatarURL   string      `json:"avatar_url"`
	Role        models.Role `json:"role"`
	RoomID      string      `json:"room_id"`
	jwt.RegisteredClaims
}

// NewJoinToken signs a join token. Exposed for the web tier and for tests.
func NewJoinToken(identity models.Identity, roomID, secret string, ttl time.Duration) (string, error) {
	claims := JoinClaims{
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
		Role:        identity.Role,
		RoomID:      roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseJoinToken verifies the token and returns the identity plus the room it
// grants access to.
func ParseJoinToken(tokenString, secret string) (models.Identity, string, error) {
	var claims JoinClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, "", ErrInvalidToken
	}
	if claims.Subject == "" || claims.RoomID == "" {
		return models.Identity{}, "", ErrInvalidToken
	}

	role := claims.Role
	if role != models.RoleHost {
		role = models.RoleAttendee
	}

	identity := models.Identity{
		UserID:      claims.Subject,
		DisplayName: claims.DisplayName,
		AvatarURL:   claims.AvatarURL,
		Role:        role,
	}
	return identity, claims.RoomID, nil
}
