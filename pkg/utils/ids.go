package utils

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

var randRead = rand.Read

// idAlphabet is intentionally lowercase-alphanumeric: paste ids appear in URLs.
const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomID returns a random lowercase-alphanumeric identifier of length n.
func RandomID(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := randRead(bytes); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range bytes {
		out[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(out), nil
}

// RandomHex returns a random hex string of n characters.
func RandomHex(n int) (string, error) {
	bytes := make([]byte, (n+1)/2)
	if _, err := randRead(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:n], nil
}

// NewJobID generates a sortable job id (UUID v7, falling back to v4).
func NewJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
