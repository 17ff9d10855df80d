// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package hashing provides one-way password hashing and the keyed hash used
// to store confirmation codes.
package hashing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// RawCodeLength is the number of random bytes in a raw confirmation code.
const RawCodeLength = 32

// dummyHash keeps verification constant-time when no hash is stored.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Provider hashes passwords with bcrypt and confirmation codes with
// HMAC-SHA256 under an injected process-wide secret. Construct one per
// process and pass it by dependency injection; there is no package-level
// singleton.
type Provider struct {
	secret []byte
}

// New creates a Provider with the given keyed-hash secret.
func New(secret string) (*Provider, error) {
	if secret == "" {
		return nil, fmt.Errorf("keyed-hash secret is required")
	}
	return &Provider{secret: []byte(secret)}, nil
}

// HashPassword hashes a plaintext password.
func (p *Provider) HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. A nil hash still performs a
// comparison to keep timing uniform.
func (p *Provider) Verify(plaintext string, hash *string) bool {
	if hash == nil || *hash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plaintext))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hash), []byte(plaintext)) == nil
}

// KeyedHash turns a raw confirmation code into its stored lookup form.
// Deterministic and one-way; the raw value is never persisted.
func (p *Provider) KeyedHash(raw string) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewRawCode generates a cryptographically random confirmation code for
// out-of-band delivery.
func NewRawCode() (string, error) {
	bytes := make([]byte, RawCodeLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
