package loxodo

import "crypto/sha256"

const (
	// MinIterations is the smallest stretch iteration count accepted when
	// creating a new vault.
	MinIterations = 2048

	// maxIterations bounds the iteration count read from a file. A count
	// above this is treated as corruption rather than stretched for hours.
	maxIterations = 1 << 25
)

// stretchPassphrase derives the 32-byte stretched key from a passphrase
// and a 32-byte salt:
//
//	k0 = SHA256(passphrase || salt)
//	ki = SHA256(k(i-1))    for i = 1..iterations
//
// The algorithm is the [KEYSTRETCH Section 4.1] scheme used by the
// Password Safe V3 format. The verifier stored on disk is SHA256 of the
// returned key.
func stretchPassphrase(passphrase, salt []byte, iterations uint32) []byte {
	h := sha256.New()
	h.Write(passphrase)
	h.Write(salt)
	key := h.Sum(nil)
	for i := uint32(0); i < iterations; i++ {
		sum := sha256.Sum256(key)
		copy(key, sum[:])
	}
	return key
}
