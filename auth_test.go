package main

import (
	"bytes"
	"context"
	"log"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordMatches(t *testing.T) {
	hash, err := hashPassword("secret1")
	require.NoError(t, err)
	require.True(t, isBcryptHash(hash))

	assert.True(t, passwordMatches(hash, "secret1"))
	assert.False(t, passwordMatches(hash, "secret2"))

	// Legacy rows hold the plaintext value.
	assert.False(t, isBcryptHash("secret1"))
	assert.True(t, passwordMatches("secret1", "secret1"))
	assert.False(t, passwordMatches("secret1", "Secret1"))
	assert.False(t, passwordMatches("", ""))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", normalizeEmail("  Ana@Example.COM "))
	assert.True(t, validEmail("ana@example.com"))
	assert.False(t, validEmail("ana@"))
	assert.False(t, validEmail(""))
}

func TestHashResetToken(t *testing.T) {
	a := hashResetToken("token-a")
	assert.Len(t, a, 64)
	assert.Equal(t, a, hashResetToken("token-a"))
	assert.NotEqual(t, a, hashResetToken("token-b"))
	assert.NotContains(t, a, "token-a")
}

func TestResetLink(t *testing.T) {
	link := resetLink("https://app.example.com/", "a b&c")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/reset-password", u.Path)
	assert.Equal(t, "a b&c", u.Query().Get("token"))
}

func TestLogMailer_MasksToken(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	token := "3f2c9a1e-7b44-4d0a-9c1e-5a6b7c8d9e0f"
	var m Mailer = logMailer{}
	require.NoError(t, m.SendPasswordReset(context.Background(), "ana@example.com", resetLink("https://app.example.com", token)))

	out := buf.String()
	assert.Contains(t, out, "ana@example.com")
	assert.Contains(t, out, "/reset-password?token=3f2c")
	assert.NotContains(t, out, token)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "https://x/reset-password?token=abcd%2A%2A%2A%2A", maskToken("https://x/reset-password?token=abcdefgh"))
	assert.Equal(t, "https://x/reset-password?token=ab%2A%2A%2A%2A", maskToken("https://x/reset-password?token=ab"))
	assert.Equal(t, "https://x/reset-password", maskToken("https://x/reset-password"))
}

func TestSelectCandidate(t *testing.T) {
	hashed, err := hashPassword("secret1")
	require.NoError(t, err)

	newest := user{ID: 3, Password: "other-pass"}
	legacy := user{ID: 2, Password: "secret1"}
	bcrypted := user{ID: 1, Password: hashed}

	cases := []struct {
		name       string
		candidates []user
		password   string
		wantID     int
		wantOK     bool
	}{
		{"no candidates", nil, "secret1", 0, false},
		{"skips non-matching newer row", []user{newest, bcrypted}, "secret1", 1, true},
		{"first match wins", []user{legacy, bcrypted}, "secret1", 2, true},
		{"legacy plaintext", []user{newest, legacy}, "secret1", 2, true},
		{"nothing matches", []user{newest, legacy, bcrypted}, "wrong", 0, false},
		{"empty stored password never matches", []user{{ID: 9}}, "", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := selectCandidate(tc.candidates, tc.password)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantID, got.ID)
		})
	}
}

func TestResetTokenUsable(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	used := now.Add(-time.Minute)

	assert.True(t, passwordResetToken{ExpiresAt: now.Add(time.Hour)}.usable(now))
	assert.False(t, passwordResetToken{ExpiresAt: now}.usable(now))
	assert.False(t, passwordResetToken{ExpiresAt: now.Add(-time.Second)}.usable(now))
	assert.False(t, passwordResetToken{ExpiresAt: now.Add(time.Hour), UsedAt: &used}.usable(now))
}

func TestValidateEnums(t *testing.T) {
	ok := func(s string) *string { return &s }

	assert.Empty(t, validateEnums(nil, nil, nil))
	assert.Empty(t, validateEnums(ok("masculino"), ok("ativo_com_frequencia"), ok("manutencao")))
	assert.Contains(t, validateEnums(ok("male"), nil, nil), "gender")
	assert.Contains(t, validateEnums(nil, ok("active"), nil), "level")
	assert.Contains(t, validateEnums(nil, nil, ok("cut")), "objective")
}
