package hashing

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"booking-service/internal/config"
	"booking-service/internal/util"

	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidHash     = errors.New("invalid hash format")
	ErrUnknownPepper   = errors.New("pepper version not found")
	ErrInvalidPeppers  = errors.New("invalid pepper configuration")
	errEmptyPepperList = errors.New("no peppers configured")
)

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type Pepper struct {
	Value   string
	Version int
}

// Hasher hashes short secrets with Argon2id and a versioned server-side
// pepper. Peppers come from config so every instance agrees on them; the
// highest version hashes new values and older ones still verify.
type Hasher struct {
	params  Argon2Params
	current Pepper
	peppers map[int]string
}

type HashResult struct {
	Hash          string `json:"hash"`
	Salt          string `json:"salt"`
	PepperVersion int    `json:"pepper_version"`
}

func NewHasher(cfg *config.Config) (*Hasher, error) {
	peppers, err := ParsePeppers(cfg.Hashing.Peppers)
	if err != nil {
		return nil, err
	}

	h := &Hasher{
		params: Argon2Params{
			Memory:      uint32(cfg.Hashing.Argon2MemoryCost),
			Iterations:  uint32(cfg.Hashing.Argon2TimeCost),
			Parallelism: uint8(cfg.Hashing.Argon2Parallelism),
			SaltLength:  16,
			KeyLength:   32,
		},
		current: peppers[len(peppers)-1],
		peppers: make(map[int]string, len(peppers)),
	}
	for _, p := range peppers {
		h.peppers[p.Version] = p.Value
	}

	util.Info("Hasher initialized",
		zap.Int("pepper_version", h.current.Version),
		zap.Int("pepper_count", len(peppers)))

	return h, nil
}

// ParsePeppers reads "version:value" entries and returns them sorted by version.
func ParsePeppers(entries []string) ([]Pepper, error) {
	if len(entries) == 0 {
		return nil, errEmptyPepperList
	}
	seen := make(map[int]bool, len(entries))
	out := make([]Pepper, 0, len(entries))
	for _, e := range entries {
		v, value, ok := strings.Cut(e, ":")
		if !ok || value == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPeppers, e)
		}
		version, err := strconv.Atoi(v)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("%w: bad version in %q", ErrInvalidPeppers, e)
		}
		if seen[version] {
			return nil, fmt.Errorf("%w: duplicate version %d", ErrInvalidPeppers, version)
		}
		seen[version] = true
		out = append(out, Pepper{Value: value, Version: version})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (h *Hasher) HashOTP(otp string) (*HashResult, error) {
	return h.hashWithPepper(otp, "otp")
}

func (h *Hasher) VerifyOTP(otp string, hashResult *HashResult) (bool, error) {
	return h.verifyWithPepper(otp, hashResult, "otp")
}

func (h *Hasher) hashWithPepper(data, context string) (*HashResult, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey(
		[]byte(data+h.current.Value+context),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return &HashResult{
		Hash:          base64.RawURLEncoding.EncodeToString(hash),
		Salt:          base64.RawURLEncoding.EncodeToString(salt),
		PepperVersion: h.current.Version,
	}, nil
}

func (h *Hasher) verifyWithPepper(data string, hashResult *HashResult, context string) (bool, error) {
	pepper, ok := h.peppers[hashResult.PepperVersion]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownPepper, hashResult.PepperVersion)
	}

	salt, err := base64.RawURLEncoding.DecodeString(hashResult.Salt)
	if err != nil {
		return false, ErrInvalidHash
	}
	expected, err := base64.RawURLEncoding.DecodeString(hashResult.Hash)
	if err != nil || len(expected) == 0 {
		return false, ErrInvalidHash
	}

	computed := argon2.IDKey(
		[]byte(data+pepper+context),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		uint32(len(expected)),
	)

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// CurrentPepperVersion is the version new hashes are written with.
func (h *Hasher) CurrentPepperVersion() int {
	return h.current.Version
}
