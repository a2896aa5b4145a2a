package httpserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"lodge_finder/internal/shared"
)

var ErrBadCredentials = errors.New("invalid username or password")

// AdminClaims is the payload of an admin session token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Auth struct {
	username string
	hash     []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewAuth prefers a bcrypt hash from config and hashes a plain password
// once at startup otherwise.
func NewAuth(cfg shared.AdminConfig) (*Auth, error) {
	hash := []byte(cfg.PasswordHash)
	if len(hash) == 0 {
		h, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		hash = h
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("ADMIN_PASSWORD_HASH: %w", err)
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Auth{username: cfg.Username, hash: hash, secret: []byte(cfg.JWTSecret), ttl: ttl, now: time.Now}, nil
}

// Login checks credentials and issues a signed token.
func (a *Auth) Login(username, password string) (string, time.Time, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return "", time.Time{}, ErrBadCredentials
	}

	now := a.now()
	exp := now.Add(a.ttl)
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// Validate parses a token and checks signature, expiry and role.
func (a *Auth) Validate(tokenString string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid || claims.Role != "admin" {
		return nil, jwt.ErrTokenMalformed
	}
	return claims, nil
}

type ctxKey struct{}

// AdminFrom returns the admin subject set by Require.
func AdminFrom(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

// Require rejects requests without a valid "Bearer <token>" header.
func (a *Auth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if h == "" {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Authorization header required")
			return
		}
		scheme, tok, ok := strings.Cut(h, " ")
		if !ok || scheme != "Bearer" || tok == "" {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Invalid authorization header format")
			return
		}
		claims, err := a.Validate(tok)
		if err != nil {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "Invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims.Subject)))
	})
}
