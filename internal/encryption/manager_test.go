package encryption

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybrid-auth-service/internal/config"
)

// fakeKMS wraps data keys by XOR with a fixed byte so Decrypt can recover them.
type fakeKMS struct {
	generateCalls int
	decryptCalls  int
	failDecrypt   bool
}

func (f *fakeKMS) GenerateDataKey(_ context.Context, in *kms.GenerateDataKeyInput, _ ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
	f.generateCalls++
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return &kms.GenerateDataKeyOutput{
		Plaintext:      key,
		CiphertextBlob: xor(key),
		KeyId:          in.KeyId,
	}, nil
}

func (f *fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.decryptCalls++
	if f.failDecrypt {
		return nil, errors.New("access denied")
	}
	return &kms.DecryptOutput{Plaintext: xor(in.CiphertextBlob)}, nil
}

func xor(in []byte) []byte {
	out := make([]byte, len(in))
	for i, b := range in {
		out[i] = b ^ 0x5a
	}
	return out
}

func TestLocalMode_SealOpen(t *testing.T) {
	em, err := NewEncryptionManager(config.KMSConfig{LocalMasterKey: "test-master"}, nil)
	require.NoError(t, err)

	sealed, err := em.Seal(context.Background(), "alex@example.com", "staff_email")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "alex@example.com")

	// a fresh manager with the same master key must decrypt without the cache
	other, err := NewEncryptionManager(config.KMSConfig{LocalMasterKey: "test-master"}, nil)
	require.NoError(t, err)

	plain, err := other.Open(context.Background(), sealed)
	require.NoError(t, err)
	assert.Equal(t, "alex@example.com", plain)
}

func TestLocalMode_WrongMasterKey(t *testing.T) {
	em, err := NewEncryptionManager(config.KMSConfig{LocalMasterKey: "one"}, nil)
	require.NoError(t, err)
	sealed, err := em.Seal(context.Background(), "+15551234", "staff_phone")
	require.NoError(t, err)

	other, err := NewEncryptionManager(config.KMSConfig{LocalMasterKey: "two"}, nil)
	require.NoError(t, err)

	_, err = other.Open(context.Background(), sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestKMSMode_UsesClientAndCache(t *testing.T) {
	fake := &fakeKMS{}
	cfg := config.KMSConfig{Enabled: true, KeyID: "alias/staff"}
	em, err := NewEncryptionManager(cfg, fake)
	require.NoError(t, err)

	data, err := em.EncryptField(context.Background(), "secret", "staff_email")
	require.NoError(t, err)
	assert.Equal(t, "alias/staff", data.KeyID)
	assert.Equal(t, 1, fake.generateCalls)

	plain, err := em.DecryptField(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "secret", plain)
	assert.Equal(t, 0, fake.decryptCalls, "cached DEK should be reused")

	em.ClearCache()
	assert.Equal(t, 0, em.GetCacheSize())

	plain, err = em.DecryptField(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "secret", plain)
	assert.Equal(t, 1, fake.decryptCalls)
}

func TestKMSMode_DecryptFailure(t *testing.T) {
	fake := &fakeKMS{}
	em, err := NewEncryptionManager(config.KMSConfig{Enabled: true, KeyID: "k"}, fake)
	require.NoError(t, err)

	data, err := em.EncryptField(context.Background(), "secret", "staff_email")
	require.NoError(t, err)
	em.ClearCache()
	fake.failDecrypt = true

	_, err = em.DecryptField(context.Background(), data)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestNewEncryptionManager_RequiresClientWhenEnabled(t *testing.T) {
	_, err := NewEncryptionManager(config.KMSConfig{Enabled: true, KeyID: "k"}, nil)
	assert.Error(t, err)
}

func TestOpen_MalformedEnvelope(t *testing.T) {
	em, err := NewEncryptionManager(config.KMSConfig{LocalMasterKey: "m"}, nil)
	require.NoError(t, err)

	_, err = em.Open(context.Background(), "not-json")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = em.Open(context.Background(), `{"version":"v0"}`)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}
