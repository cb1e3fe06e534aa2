package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPolicyRulesInOrder(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     string
	}{
		{"empty", "", "Password is required."},
		{"short with nothing else", "abc", "Password must be at least 8 characters long."},
		{"short but upper and special", "Ab!", "Password must be at least 8 characters long."},
		{"no uppercase", "password!", "Password must contain at least one uppercase letter."},
		{"non-ascii uppercase only", "ÉÈÊ-école!", "Password must contain at least one uppercase letter."},
		{"no special", "Password1", "Password must contain at least one special character."},
		{"too long for bcrypt", "P!" + strings.Repeat("a", 71), "Password must be at most 72 bytes long."},
		{"valid", "Passw0rd!", ""},
		{"valid at 72 bytes", "P!" + strings.Repeat("a", 70), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Policy{}.Validate(tt.password)
			assert.Equal(t, tt.want == "", v.Valid())
			assert.Equal(t, tt.want, v.First())
			assert.LessOrEqual(t, len(v.Errors), 1)
		})
	}
}

func TestPolicyCountsCharactersNotBytes(t *testing.T) {
	// Six characters, ten bytes.
	v := Policy{}.Validate("Pé!ééé")
	assert.Equal(t, "Password must be at least 8 characters long.", v.First())
}

func TestBcryptHasherSaltsEveryHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	first, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	second, err := h.Hash("Passw0rd!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.NotContains(t, first, "Passw0rd!")
	assert.True(t, h.Verify("Passw0rd!", first))
	assert.True(t, h.Verify("Passw0rd!", second))
	assert.False(t, h.Verify("wrong", first))
}

func TestBcryptHasherMalformedHash(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	assert.NotPanics(t, func() {
		assert.False(t, h.Verify("Passw0rd!", "not-a-hash"))
		assert.False(t, h.Verify("Passw0rd!", ""))
	})
}

func TestBcryptHasherRejectsEmpty(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash("")
	assert.Error(t, err)
}

func TestNewBcryptHasherCostFallback(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(99).cost)
	assert.Equal(t, 12, NewBcryptHasher(12).cost)
}
