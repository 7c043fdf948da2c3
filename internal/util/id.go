package util

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"strings"

	"github.com/google/uuid"
)

func GenerateUUID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		log.Fatalf("Failed to generate UUID: %v", err)
	}
	return id.String()
}

// NewID returns a prefixed public identifier, e.g. NewID("pay") ->
// "pay_9f8d2c...". Prefixes keep identifiers self-describing in API
// responses and webhook payloads.
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(GenerateUUID(), "-", "")
}

// NewSecret returns a prefixed random secret such as a webhook signing key.
func NewSecret(prefix string) string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}
	return prefix + "_" + hex.EncodeToString(buf)
}
