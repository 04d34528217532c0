// internal/lobby/codes.go
package lobby

import (
	"context"
	crand "crypto/rand"
	"math/big"
	"math/rand"
)

const (
	// GameCodeLength is the length of generated game codes.
	GameCodeLength = 6

	// gameCodeChars are the characters used for generating game codes
	// (excluding ambiguous chars: 0/O, 1/I).
	gameCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// maxCodeAttempts bounds the collision-retry loop; the keyspace is 32^6,
	// so hitting this means the store lookup itself is broken.
	maxCodeAttempts = 25
)

// NewGameCode creates a random game code.
func NewGameCode() string {
	code := make([]byte, GameCodeLength)
	for i := range code {
		n, err := crand.Int(crand.Reader, big.NewInt(int64(len(gameCodeChars))))
		if err != nil {
			// fallback to math/rand if crypto fails
			code[i] = gameCodeChars[rand.Intn(len(gameCodeChars))]
			continue
		}
		code[i] = gameCodeChars[n.Int64()]
	}
	return string(code)
}

// uniqueGameCode generates a code not yet present in the record store,
// retrying on collision.
func uniqueGameCode(ctx context.Context, store RecordStore) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := NewGameCode()
		exists, err := store.GameCodeExists(ctx, code)
		if err != nil {
			return "", Internalf(err, "internal error")
		}
		if !exists {
			return code, nil
		}
	}
	return "", Internalf(nil, "internal error")
}
