package main

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is a pre-computed bcrypt hash used when no account matches the
// login email. Running bcrypt against it (instead of returning early) keeps
// response time constant, preventing timing-based email enumeration.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy"), bcrypt.DefaultCost)

const minPasswordLength = 6

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// isBcryptHash reports whether a stored password is a bcrypt hash. Older
// accounts may still hold the plaintext value.
func isBcryptHash(stored string) bool {
	return strings.HasPrefix(stored, "$2")
}

// passwordMatches compares against a bcrypt hash or, for legacy rows, the
// plaintext value.
func passwordMatches(stored, password string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return stored != "" && stored == password
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// login verifies email/password and returns the user's auth token.
// POST /api/users/login (public, no auth required).
//
// Every account whose email matches case-insensitively is a candidate, newest
// first; the first one whose password matches wins. A legacy plaintext match
// is upgraded to bcrypt in place.
func (h *Handler) login(c *gin.Context) {
	var body loginRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	email := normalizeEmail(body.Email)
	if email == "" || body.Password == "" {
		apiError(c, http.StatusBadRequest, "email and password are required")
		return
	}

	candidates, err := queryMany[user](h.db, c,
		`SELECT * FROM users WHERE lower(email) = @email
		 ORDER BY created_at DESC, id DESC`,
		pgx.NamedArgs{"email": email})
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to look up user")
		return
	}

	if len(candidates) == 0 {
		// Keep response time constant regardless of whether the email exists.
		bcrypt.CompareHashAndPassword(dummyHash, []byte(body.Password))
		apiError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}

	u, ok := selectCandidate(candidates, body.Password)
	if !ok {
		apiError(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !isBcryptHash(u.Password) {
		h.upgradePlaintextPassword(c, u.ID, body.Password)
	}
	populateEnergy(&u)
	c.JSON(http.StatusOK, gin.H{"token": u.AuthToken, "user": u})
}

// selectCandidate returns the first candidate whose stored password matches.
// Candidates are expected newest first.
func selectCandidate(candidates []user, password string) (user, bool) {
	for _, u := range candidates {
		if passwordMatches(u.Password, password) {
			return u, true
		}
	}
	return user{}, false
}

// upgradePlaintextPassword re-hashes a legacy plaintext password. Failures are
// logged only; the login that triggered it still succeeds.
func (h *Handler) upgradePlaintextPassword(c *gin.Context, userID int, password string) {
	hash, err := hashPassword(password)
	if err != nil {
		log.Printf("[login] hash upgrade failed for user %d: %v", userID, err)
		return
	}
	_, err = h.db.Exec(c,
		"UPDATE users SET password = @password, updated_at = now() WHERE id = @id",
		pgx.NamedArgs{"password": hash, "id": userID})
	if err != nil {
		log.Printf("[login] hash upgrade failed for user %d: %v", userID, err)
	}
}

// authMiddleware validates the Bearer token and sets user_id on the context.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			apiError(c, http.StatusUnauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" {
			apiError(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		var userID int
		err := h.db.QueryRow(c, "SELECT id FROM users WHERE auth_token = $1", token).Scan(&userID)
		if err != nil {
			apiError(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
