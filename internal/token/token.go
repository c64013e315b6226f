package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yoockh/nexusbot/internal/models"
)

var ErrInvalidToken = errors.New("invalid session token")

type sessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	BotID     string `json:"bid"`
}

// Signer wraps session ids handed to the browser. Without a secret tokens are the raw id.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) *Signer {
	s := &Signer{now: time.Now}
	if secret = strings.TrimSpace(secret); secret != "" {
		s.secret = []byte(secret)
	}
	return s
}

func (s *Signer) Enabled() bool { return s != nil && len(s.secret) > 0 }

// Issue returns the value the widget caches for sessionID. Placeholder ids pass through.
func (s *Signer) Issue(sessionID, botID string) (string, error) {
	if !s.Enabled() || !models.IsPersistedSessionID(sessionID) {
		return sessionID, nil
	}
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  sessionID,
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
		SessionID: sessionID,
		BotID:     botID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse returns the session id inside raw, checking it was issued for botID.
// Empty input yields an empty id.
func (s *Signer) Parse(raw, botID string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !models.IsPersistedSessionID(raw) {
		return raw, nil
	}
	if !s.Enabled() {
		return raw, nil
	}

	claims := &sessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || tok == nil || !tok.Valid {
		return "", ErrInvalidToken
	}
	if claims.SessionID == "" || claims.BotID != botID {
		return "", ErrInvalidToken
	}
	return claims.SessionID, nil
}
