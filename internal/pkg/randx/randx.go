/*
Package randx provides the random sources used by the service: UUID room ids and the
coin flips that decide serve direction.

Source is an interface so physics tests can make serves deterministic.
*/
package randx

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// Source provides random integers.
type Source interface {
	// Intn returns a random int in [0, n).
	Intn(n int) int
}

// CryptoSource implements Source using crypto/rand.
type CryptoSource struct{}

// Intn returns a cryptographically random int in [0, n). It returns 0 for n <= 0.
func (CryptoSource) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	num, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(num.Int64())
}

// Sign returns +1 or -1 with equal probability.
func Sign(src Source) float64 {
	if src.Intn(2) == 0 {
		return -1
	}
	return 1
}

// RoomID generates a UUID v4 string identifying a game room.
func RoomID() string {
	return uuid.New().String()
}

// IsValidRoomID reports whether id parses as a UUID.
func IsValidRoomID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// FixedSource replays the given values in order and then repeats the last one.
// It is meant for tests.
type FixedSource struct {
	Values []int
	next   int
}

// Intn returns the next queued value modulo n.
func (f *FixedSource) Intn(n int) int {
	if len(f.Values) == 0 || n <= 0 {
		return 0
	}
	i := f.next
	if i >= len(f.Values) {
		i = len(f.Values) - 1
	} else {
		f.next++
	}
	return f.Values[i] % n
}
