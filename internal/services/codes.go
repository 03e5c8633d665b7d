package services

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

const codePrefix = "RSV-"

// newCheckInCode returns an RSV-XXXXXXXX code (32 random bits, uppercase hex).
func newCheckInCode() string {
	u := uuid.New()
	return codePrefix + strings.ToUpper(hex.EncodeToString(u[:4]))
}

// NormalizeCode trims and upper-cases a scanned or typed code.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
