package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

const (
	// DefaultSecretSize is the raw byte length of generated secrets.
	DefaultSecretSize = 32
	// SaltSize is the raw byte length of per-token salts.
	SaltSize = 16
)

// ErrInvalidDigest is returned when a stored digest cannot be decoded.
var ErrInvalidDigest = errors.New("invalid token digest")

// Digest is the stored form of an opaque secret: a salted SHA-256 hash and
// the salt it was computed with. The raw secret is never stored.
type Digest struct {
	Hash [32]byte
	Salt [SaltSize]byte
}

// Generate returns a new opaque secret of size raw bytes, encoded as
// unpadded base64url. Sizes below [DefaultSecretSize] are rounded up.
func Generate(size int) (string, error) {
	if size < DefaultSecretSize {
		size = DefaultSecretSize
	}

	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Hash derives a fresh salted digest for the given secret. Each call draws
// a new salt, so two digests of the same secret never match byte-for-byte.
func Hash(secret string) (Digest, error) {
	var d Digest
	if _, err := rand.Read(d.Salt[:]); err != nil {
		return Digest{}, err
	}

	d.Hash = salted(secret, d.Salt)
	return d, nil
}

// Verify reports whether secret matches the digest. Comparison is
// constant-time over the full hash width.
func Verify(secret string, d Digest) bool {
	computed := salted(secret, d.Salt)
	return subtle.ConstantTimeCompare(computed[:], d.Hash[:]) == 1
}

// Encode renders a digest as a single storable string: base64url(salt) +
// "." + base64url(hash).
func (d Digest) Encode() string {
	return base64.RawURLEncoding.EncodeToString(d.Salt[:]) + "." +
		base64.RawURLEncoding.EncodeToString(d.Hash[:])
}

// Decode parses a string produced by [Digest.Encode].
func Decode(encoded string) (Digest, error) {
	var d Digest

	dot := -1
	for i := 0; i < len(encoded); i++ {
		if encoded[i] == '.' {
			dot = i
			break
		}
	}
	if dot <= 0 || dot == len(encoded)-1 {
		return d, ErrInvalidDigest
	}

	salt, err := base64.RawURLEncoding.DecodeString(encoded[:dot])
	if err != nil || len(salt) != SaltSize {
		return d, ErrInvalidDigest
	}
	hash, err := base64.RawURLEncoding.DecodeString(encoded[dot+1:])
	if err != nil || len(hash) != len(d.Hash) {
		return d, ErrInvalidDigest
	}

	copy(d.Salt[:], salt)
	copy(d.Hash[:], hash)
	return d, nil
}

func salted(secret string, salt [SaltSize]byte) [32]byte {
	buf := make([]byte, 0, len(salt)+len(secret))
	buf = append(buf, salt[:]...)
	buf = append(buf, secret...)
	return sha256.Sum256(buf)
}
