package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("token is invalid or expired")

// Verifier turns a bearer token into the authenticated user id.
type Verifier interface {
	Verify(token string) (string, error)
}

// HMAC issues and verifies HS256 identity tokens.
type HMAC struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewHMAC(secret string, ttl time.Duration) *HMAC {
	return &HMAC{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type claims struct {
	UserID   any    `json:"user_id,omitempty"`
	UID      string `json:"uid,omitempty"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token for uid.
func (h *HMAC) Issue(uid, username string) (string, error) {
	now := h.now()
	c := claims{
		UserID:   uid,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(h.secret)
}

// Verify accepts user_id, sub or uid as the user identifier, in that order.
func (h *HMAC) Verify(token string) (string, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return h.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(h.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var uid string
	switch v := c.UserID.(type) {
	case string:
		uid = v
	case float64:
		uid = strconv.FormatInt(int64(v), 10)
	}
	if uid == "" {
		uid = c.Subject
	}
	if uid == "" {
		uid = c.UID
	}
	if uid == "" {
		return "", fmt.Errorf("%w: no user id claim", ErrInvalidToken)
	}
	return uid, nil
}
