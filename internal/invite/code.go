// Package invite generates the shareable codes users type to join an organization.
package invite

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"
)

// MaxAttempts bounds how many codes are tried before giving up.
const MaxAttempts = 10

// ErrExhausted is returned when every attempt collided with an existing code.
var ErrExhausted = errors.New("invitation code space exhausted after retries")

// ErrTaken is returned by a Claim callback when the storage layer rejected the
// code as a duplicate. The generator retries with a fresh code.
var ErrTaken = errors.New("invitation code already in use")

var pattern = regexp.MustCompile(`^TF-[A-Z]{3}-[0-9]{4}$`)

// Valid reports whether code has the TF-XXX-NNNN shape.
func Valid(code string) bool {
	return pattern.MatchString(code)
}

// Generator produces invitation codes from a random source.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator seeds a generator from the clock.
func NewGenerator() *Generator {
	return NewGeneratorWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewGeneratorWithSource is used by tests to get deterministic codes.
func NewGeneratorWithSource(src rand.Source) *Generator {
	return &Generator{rnd: rand.New(src)}
}

// Code returns one candidate code without checking uniqueness.
func (g *Generator) Code() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	letters := make([]byte, 3)
	for i := range letters {
		letters[i] = byte('A' + g.rnd.Intn(26))
	}
	return fmt.Sprintf("TF-%s-%d", letters, 1000+g.rnd.Intn(9000))
}

// Issue tries up to MaxAttempts codes. exists is a cheap pre-check; claim persists
// the code and must return ErrTaken when a uniqueness constraint fires, which is
// the authoritative check.
func (g *Generator) Issue(ctx context.Context, exists func(context.Context, string) (bool, error), claim func(context.Context, string) error) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code := g.Code()
		if exists != nil {
			taken, err := exists(ctx, code)
			if err != nil {
				return "", fmt.Errorf("check invitation code: %w", err)
			}
			if taken {
				continue
			}
		}
		err := claim(ctx, code)
		if errors.Is(err, ErrTaken) {
			continue
		}
		if err != nil {
			return "", err
		}
		return code, nil
	}
	return "", ErrExhausted
}
