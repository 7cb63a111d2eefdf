package util

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("admin", "admin", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
}

func TestParseJWTRejectsWrongSecret(t *testing.T) {
	token, err := GenerateJWT("admin", "admin", "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(token, "other")
	assert.Error(t, err)
}

func TestParseJWTRejectsExpired(t *testing.T) {
	token, err := GenerateJWT("admin", "admin", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(token, "secret")
	assert.Error(t, err)
}

func TestGenerateJWTNeedsSecret(t *testing.T) {
	_, err := GenerateJWT("admin", "admin", "", time.Hour)
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	cases := map[string]string{
		"":           "",
		"Bearer abc": "abc",
		"bearer abc": "abc",
		"Basic abc":  "",
		"Bearer a b": "",
		"Bearerabc":  "",
	}
	for header, want := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, ExtractToken(r), header)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.True(t, CheckPassword("hunter2", hash))
	assert.False(t, CheckPassword("hunter3", hash))
	assert.False(t, CheckPassword("hunter2", ""))
}
