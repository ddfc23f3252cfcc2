// Package pow implements the proof-of-work admission check: a
// cheap-to-verify, costly-to-produce hash puzzle binding a node
// identity to its first contact.
package pow

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/Ap3pp3rs94/gossipd/internal/wire"
)

// Algorithm is the only supported PoW hash algorithm.
const Algorithm = "sha256"

// digest hashes identity || decimal(nonce) the same disjoint-field
// way the idempotency package hashes ordered parts into one sha256.
func digest(identity string, nonce uint64) string {
	h := sha256.New()
	h.Write([]byte(identity))
	h.Write([]byte(strconv.FormatUint(nonce, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

func leadingZeros(hexDigest string, k int) bool {
	if k <= 0 {
		return true
	}
	if k > len(hexDigest) {
		return false
	}
	for i := 0; i < k; i++ {
		if hexDigest[i] != '0' {
			return false
		}
	}
	return true
}

// Compute brute-force searches nonce = 0, 1, 2, ... for the first
// value whose sha256(identity || decimal(nonce)) hex digest begins
// with k '0' characters. CPU-bound; run once at node start.
func Compute(identity string, k int) wire.PoWToken {
	start := time.Now()
	var nonce uint64
	for {
		d := digest(identity, nonce)
		if leadingZeros(d, k) {
			return wire.PoWToken{
				Algorithm: Algorithm,
				K:         k,
				Nonce:     nonce,
				Digest:    d,
				ElapsedMS: time.Since(start).Milliseconds(),
			}
		}
		nonce++
	}
}

// Verify returns false if token is absent, declares k < requiredK, or
// if sha256(claimedIdentity || decimal(token.Nonce)) does not equal
// the claimed digest or does not begin with requiredK zeros. A
// verified token binds the admission to claimedIdentity: a token
// computed for a different identity will not reproduce the same
// digest and fails.
func Verify(claimedIdentity string, token *wire.PoWToken, requiredK int) bool {
	if token == nil {
		return false
	}
	if token.Algorithm != "" && token.Algorithm != Algorithm {
		return false
	}
	if token.K < requiredK {
		return false
	}
	want := digest(claimedIdentity, token.Nonce)
	if want != token.Digest {
		return false
	}
	return leadingZeros(token.Digest, requiredK)
}
