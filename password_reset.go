package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// hashResetToken is what gets stored; the raw token only ever exists in the
// emailed link.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// resetLink builds PUBLIC_BASE_URL/reset-password?token=....
func resetLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

// forgotPassword issues a reset token for the account matching the email.
// POST /api/users/forgot-password (public). Always answers 202 so the
// response doesn't reveal whether the email is registered.
func (h *Handler) forgotPassword(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	email := normalizeEmail(body.Email)
	if !validEmail(email) {
		apiError(c, http.StatusBadRequest, "invalid email")
		return
	}

	accepted := gin.H{"message": "if the email is registered, a reset link has been sent"}

	u, err := queryOne[user](h.db, c,
		`SELECT * FROM users WHERE lower(email) = @email
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		pgx.NamedArgs{"email": email})
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("[forgotPassword] lookup failed: %v", err)
		}
		c.JSON(http.StatusAccepted, accepted)
		return
	}

	token := uuid.New().String()
	_, err = h.db.Exec(c,
		`INSERT INTO password_reset_tokens (user_id, token_hash, expires_at)
		 VALUES (@userID, @tokenHash, @expiresAt)`,
		pgx.NamedArgs{
			"userID":    u.ID,
			"tokenHash": hashResetToken(token),
			"expiresAt": h.now().Add(h.cfg.Auth.ResetTokenTTL),
		})
	if err != nil {
		log.Printf("[forgotPassword] storing token for user %d failed: %v", u.ID, err)
		c.JSON(http.StatusAccepted, accepted)
		return
	}

	if err := h.mailer.SendPasswordReset(c, u.Email, resetLink(h.cfg.Server.PublicBaseURL, token)); err != nil {
		log.Printf("[forgotPassword] sending mail to user %d failed: %v", u.ID, err)
	}
	c.JSON(http.StatusAccepted, accepted)
}

// resetPassword consumes a reset token and sets a new password.
// POST /api/users/reset-password (public). The token lookup, the password
// update and marking the token used run in one transaction.
func (h *Handler) resetPassword(c *gin.Context) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	body.Token = strings.TrimSpace(body.Token)
	if body.Token == "" {
		apiError(c, http.StatusBadRequest, "token is required")
		return
	}
	if len(body.Password) < minPasswordLength {
		apiError(c, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	hash, err := hashPassword(body.Password)
	if err != nil {
		log.Printf("[resetPassword] hash error: %v", err)
		apiError(c, http.StatusInternalServerError, "failed to reset password")
		return
	}

	tx, err := h.db.Begin(c)
	if err != nil {
		apiError(c, http.StatusInternalServerError, "failed to reset password")
		return
	}
	defer tx.Rollback(c)

	// FOR UPDATE so two concurrent resets with the same token can't both pass.
	t, err := queryOne[passwordResetToken](tx, c,
		`SELECT * FROM password_reset_tokens WHERE token_hash = @tokenHash FOR UPDATE`,
		pgx.NamedArgs{"tokenHash": hashResetToken(body.Token)})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		apiError(c, http.StatusInternalServerError, "failed to reset password")
		return
	}
	if err != nil || !t.usable(h.now()) {
		apiError(c, http.StatusBadRequest, "invalid or expired token")
		return
	}

	if _, err := tx.Exec(c,
		"UPDATE users SET password = @password, updated_at = now() WHERE id = @userID",
		pgx.NamedArgs{"password": hash, "userID": t.UserID}); err != nil {
		apiError(c, http.StatusInternalServerError, "failed to reset password")
		return
	}
	if _, err := tx.Exec(c,
		"UPDATE password_reset_tokens SET used_at = @now WHERE id = @id",
		pgx.NamedArgs{"now": h.now(), "id": t.ID}); err != nil {
		apiError(c, http.StatusInternalServerError, "failed to reset password")
		return
	}
	if err := tx.Commit(c); err != nil {
		apiError(c, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}
