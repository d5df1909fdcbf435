package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a bearer token cannot be parsed, fails
// verification or lacks a subject.
var ErrInvalidToken = errors.New("invalid token")

// Claims holds the identity carried by a bearer token.
type Claims struct {
	UserID string
	Role   string
}

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// IssueToken builds and signs an HS256 JWT for a user.  It is used by the
// operator CLI and tests to obtain tokens accepted by the bearer middleware
// and the remote service in development setups.
func IssueToken(secret, userID, role string, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// VerifyToken checks an HS256 signature and expiry and returns the claims.
func VerifyToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	return claimsOf(tok)
}

// ClaimsFromToken reads the claims without verifying the signature.  The
// remote service remains the authority on token validity; this is only used
// to learn which user a token belongs to.
func ClaimsFromToken(raw string) (Claims, error) {
	tok, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	return claimsOf(tok)
}

func claimsOf(tok *jwt.Token) (Claims, error) {
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	uid := claimString(mc["sub"])
	if uid == "" {
		uid = claimString(mc["user_id"])
	}
	if uid == "" {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: uid, Role: claimString(mc["role"])}, nil
}

// claimString renders a claim that may have been encoded as a JSON string
// or number.
func claimString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}
