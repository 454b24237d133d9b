// Package utils provides helpers for minting the tokens camera agents use
// to push detections over HTTP.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleIngest is the only role the API recognises.  Tokens carrying it may
// append detections; every read endpoint is public.
const RoleIngest = "INGEST"

// IngestToken is a signed JWT together with its expiry.
type IngestToken struct {
	Token string
	Exp   time.Time
}

// NewIngestToken builds and signs an HS256 JWT for a camera agent.  The
// subject is the camera id; role, exp, iat and a random jti are set too.
func NewIngestToken(secret, cameraID string, ttl time.Duration) (IngestToken, error) {
	if secret == "" {
		return IngestToken{}, errors.New("empty signing secret")
	}
	if cameraID == "" {
		return IngestToken{}, errors.New("empty camera id")
	}
	jti, err := randomHex(16)
	if err != nil {
		return IngestToken{}, err
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  cameraID,
		"role": RoleIngest,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
		"jti":  jti,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return IngestToken{}, err
	}
	return IngestToken{Token: signed, Exp: exp}, nil
}

// randomHex returns n random bytes, hex encoded.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
