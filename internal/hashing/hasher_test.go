package hashing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybrid-auth-service/internal/config"
)

func testConfig() config.HashingConfig {
	return config.HashingConfig{
		Argon2MemoryCost:  8 * 1024,
		Argon2TimeCost:    1,
		Argon2Parallelism: 1,
		Peppers:           map[int]string{1: "pepper-one", 2: "pepper-two"},
		PepperVersion:     2,
	}
}

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(testConfig())
	require.NoError(t, err)
	return h
}

func TestNewHasher_UnknownCurrentPepper(t *testing.T) {
	cfg := testConfig()
	cfg.PepperVersion = 9

	_, err := NewHasher(cfg)
	assert.ErrorIs(t, err, ErrUnknownPepper)
}

func TestHashPIN_RoundTrip(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.HashPIN("1234")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "argon2id$v=19$m=8192,t=1,p=1$2$"))

	ok, err := h.VerifyPIN("1234", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.VerifyPIN("4321", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPIN_SaltsEveryHash(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.HashPIN("0000")
	require.NoError(t, err)
	b, err := h.HashPIN("0000")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHashPIN_RejectsEmpty(t *testing.T) {
	h := newTestHasher(t)

	_, err := h.HashPIN("")
	assert.ErrorIs(t, err, ErrEmptyPIN)
}

func TestVerifyPIN_RetiredPepperStillVerifies(t *testing.T) {
	old := testConfig()
	old.PepperVersion = 1
	oldHasher, err := NewHasher(old)
	require.NoError(t, err)

	encoded, err := oldHasher.HashPIN("2468")
	require.NoError(t, err)

	h := newTestHasher(t)
	ok, err := h.VerifyPIN("2468", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, h.NeedsRehash(encoded))
}

func TestVerifyPIN_DroppedPepper(t *testing.T) {
	h := newTestHasher(t)
	encoded, err := h.HashPIN("1357")
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Peppers = map[int]string{1: "pepper-one"}
	cfg.PepperVersion = 1
	other, err := NewHasher(cfg)
	require.NoError(t, err)

	_, err = other.VerifyPIN("1357", encoded)
	assert.ErrorIs(t, err, ErrUnknownPepper)
}

func TestVerifyPIN_MalformedHashes(t *testing.T) {
	h := newTestHasher(t)

	cases := map[string]struct {
		encoded string
		want    error
	}{
		"empty":          {"", ErrInvalidHash},
		"legacy sha":     {"5994471abb01112afcc18159f6cc74b4f511b99806da59b3caf5a9c173cacfc5", ErrInvalidHash},
		"wrong algo":     {"bcrypt$v=19$m=1,t=1,p=1$1$c2FsdA$aGFzaA", ErrInvalidHash},
		"bad version":    {"argon2id$v=16$m=1,t=1,p=1$1$c2FsdA$aGFzaA", ErrIncompatibleVersion},
		"bad params":     {"argon2id$v=19$m=x,t=1,p=1$1$c2FsdA$aGFzaA", ErrInvalidHash},
		"bad pepper":     {"argon2id$v=19$m=1,t=1,p=1$one$c2FsdA$aGFzaA", ErrInvalidHash},
		"bad salt":       {"argon2id$v=19$m=1,t=1,p=1$1$!!$aGFzaA", ErrInvalidHash},
		"missing digest": {"argon2id$v=19$m=1,t=1,p=1$1$c2FsdA$", ErrInvalidHash},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ok, err := h.VerifyPIN("1234", tc.encoded)
			assert.False(t, ok)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNeedsRehash_CurrentHash(t *testing.T) {
	h := newTestHasher(t)
	encoded, err := h.HashPIN("9999")
	require.NoError(t, err)

	assert.False(t, h.NeedsRehash(encoded))
	assert.True(t, h.NeedsRehash("garbage"))
}
