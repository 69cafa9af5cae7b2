package id

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates opaque IDs for externally visible records. Services take
// the interface so tests can inject deterministic sequences.
type Generator interface {
	NewID() (string, error)
}

// UUIDGenerator issues random (version 4) UUIDs.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}

	return u.String(), nil
}
