package idgen

import (
	"strconv"

	"github.com/google/uuid"
)

// ID prefixes for different models
const (
	PrefixSession = "sess_"
	PrefixRequest = "req_"
)

// NewSession generates a new session ID with sess_ prefix
func NewSession() string {
	return PrefixSession + uuid.New().String()
}

// NewRequest generates a request ID with req_ prefix
func NewRequest() string {
	return PrefixRequest + uuid.New().String()
}

// Device returns the stable ID of the n-th device in the default pool.
// Numeric IDs match the ones the remote backend assigns.
func Device(n int) string {
	return strconv.Itoa(n)
}

// New generates a generic UUID without prefix (for internal use only)
func New() string {
	return uuid.New().String()
}
