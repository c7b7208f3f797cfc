package utils // package utils provides token and password helpers for admin authentication

import (
    "errors"
    "fmt"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role allowed to change guests.
const RoleAdmin = "ADMIN"

// ErrInvalidToken is returned for tokens that fail signature, algorithm
// or expiry checks, or that lack a subject or role.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken is a signed JWT together with its expiry (UTC).
type AccessToken struct {
    Token string
    Exp   time.Time
}

// Claims are the application claims carried by an access token.
type Claims struct {
    Subject string
    Role    string
}

// NewAccessToken signs an HS256 JWT for subject with the given role and a
// lifetime of ttlMin minutes. The token carries sub, role, exp and iat.
func NewAccessToken(secret, subject, role string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  subject,
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw against secret and returns its claims.
// Only HMAC-signed tokens are accepted.
func ParseAccessToken(secret, raw string) (Claims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
        }
        return []byte(secret), nil
    }, jwt.WithExpirationRequired())
    if err != nil || !tok.Valid {
        return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
    }
    mc, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Claims{}, ErrInvalidToken
    }
    sub, _ := mc["sub"].(string)
    role, _ := mc["role"].(string)
    if sub == "" || role == "" {
        return Claims{}, fmt.Errorf("%w: missing sub or role", ErrInvalidToken)
    }
    return Claims{Subject: sub, Role: role}, nil
}
