// Package namegen generates random queue/semaphore names, the helper
// spec.md §6 describes for callers that don't want to pick their own name
// (typically short-lived queues in tests and examples).
package namegen

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/vectorway/shmq/internal/shmqerr"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// MaxDarwinLength is the longest name this generator may be asked for and
// stay usable on macOS, per spec.md §6: "the generated length must be
// < 30 bytes" once the "/C" coupling-signal prefix is added.
const MaxDarwinLength = 27

// Generate returns a random lowercase-Latin-alphabet name of the given
// length, mixing a cryptographic RNG with the low bits of a high-resolution
// clock (spec.md §6 "Name generation").
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", shmqerr.New(shmqerr.InvalidArgument, "namegen.Generate", fmt.Errorf("length %d must be positive", length))
	}

	entropy := make([]byte, length)
	if _, err := rand.Read(entropy); err != nil {
		return "", shmqerr.New(shmqerr.OutOfMemory, "namegen.Generate", err)
	}
	clock := uint64(time.Now().UnixNano())

	out := make([]byte, length)
	for i := range out {
		mixed := entropy[i] ^ byte(clock>>(uint(i%8)*8))
		out[i] = alphabet[int(mixed)%len(alphabet)]
	}
	return string(out), nil
}
