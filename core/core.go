package core

import "github.com/google/uuid"

// NewID generates a new unique identifier for simulations and requests.
func NewID() string { return uuid.NewString() }
