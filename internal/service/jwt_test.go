package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestJWT(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
	InitJWT()
}

func TestJWTRoundtrip(t *testing.T) {
	initTestJWT(t)

	token, err := GenerateJWT(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, err := ParseJWT(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestJWTRejectsGarbage(t *testing.T) {
	initTestJWT(t)

	_, err := ParseJWT("not-a-token")
	assert.Error(t, err)
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	initTestJWT(t)

	token, err := GenerateJWT(42)
	require.NoError(t, err)

	// подменяем последний символ подписи
	tampered := token[:len(token)-1]
	if token[len(token)-1] == 'A' {
		tampered += "B"
	} else {
		tampered += "A"
	}

	_, err = ParseJWT(tampered)
	assert.Error(t, err)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret-one")
	InitJWT()

	token, err := GenerateJWT(7)
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "secret-two")
	InitJWT()

	_, err = ParseJWT(token)
	assert.Error(t, err)
}
