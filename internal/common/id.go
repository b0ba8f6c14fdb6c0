package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a random (v4) job identifier
func NewJobID() string {
	return uuid.New().String()
}
