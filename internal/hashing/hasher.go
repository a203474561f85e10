package hashing

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"hybrid-auth-service/internal/config"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidHash         = errors.New("invalid hash format")
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
	ErrUnknownPepper       = errors.New("pepper version not found")
	ErrEmptyPIN            = errors.New("pin must not be empty")
)

const (
	algorithm = "argon2id"
	// pinContext keeps PIN digests from being reused for any other credential type.
	pinContext = "staff-pin"
)

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type Hasher struct {
	params         Argon2Params
	peppers        map[int]string
	currentVersion int
	mu             sync.RWMutex
}

// NewHasher builds a PIN hasher from the configured argon2 cost and pepper set.
func NewHasher(cfg config.HashingConfig) (*Hasher, error) {
	if _, ok := cfg.Peppers[cfg.PepperVersion]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPepper, cfg.PepperVersion)
	}

	peppers := make(map[int]string, len(cfg.Peppers))
	for v, p := range cfg.Peppers {
		peppers[v] = p
	}

	return &Hasher{
		params: Argon2Params{
			Memory:      uint32(cfg.Argon2MemoryCost),
			Iterations:  uint32(cfg.Argon2TimeCost),
			Parallelism: uint8(cfg.Argon2Parallelism),
			SaltLength:  16,
			KeyLength:   32,
		},
		peppers:        peppers,
		currentVersion: cfg.PepperVersion,
	}, nil
}

// HashPIN returns an encoded argon2id digest:
// argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<pepperVersion>$<salt>$<hash>
func (h *Hasher) HashPIN(pin string) (string, error) {
	if pin == "" {
		return "", ErrEmptyPIN
	}

	h.mu.RLock()
	version := h.currentVersion
	pepper := h.peppers[version]
	h.mu.RUnlock()

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(pin+pepper+pinContext),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf("%s$v=%d$m=%d,t=%d,p=%d$%d$%s$%s",
		algorithm,
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		version,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPIN re-derives the digest with the parameters recorded in encoded.
func (h *Hasher) VerifyPIN(pin, encoded string) (bool, error) {
	decoded, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	pepper, err := h.getPepper(decoded.pepperVersion)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(pin+pepper+pinContext),
		decoded.salt,
		decoded.params.Iterations,
		decoded.params.Memory,
		decoded.params.Parallelism,
		uint32(len(decoded.key)),
	)

	return subtle.ConstantTimeCompare(computed, decoded.key) == 1, nil
}

// NeedsRehash reports whether encoded was produced with an older pepper or cost.
func (h *Hasher) NeedsRehash(encoded string) bool {
	decoded, err := decodeHash(encoded)
	if err != nil {
		return true
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	return decoded.pepperVersion != h.currentVersion ||
		decoded.params.Memory != h.params.Memory ||
		decoded.params.Iterations != h.params.Iterations ||
		decoded.params.Parallelism != h.params.Parallelism
}

func (h *Hasher) getPepper(version int) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	pepper, ok := h.peppers[version]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownPepper, version)
	}
	return pepper, nil
}

type decodedHash struct {
	params        Argon2Params
	pepperVersion int
	salt          []byte
	key           []byte
}

func decodeHash(encoded string) (*decodedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != algorithm {
		return nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[1], "v=%d", &version); err != nil {
		return nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return nil, ErrIncompatibleVersion
	}

	var d decodedHash
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &d.params.Memory, &d.params.Iterations, &d.params.Parallelism); err != nil {
		return nil, ErrInvalidHash
	}

	pv, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, ErrInvalidHash
	}
	d.pepperVersion = pv

	if d.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, ErrInvalidHash
	}
	if d.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(d.key) == 0 {
		return nil, ErrInvalidHash
	}

	return &d, nil
}
