package loxodo

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/twofish"
)

// blockSize is the Twofish block size. Every ciphertext region of a vault
// file is a multiple of this.
const blockSize = twofish.BlockSize

// ecbCipher encrypts and decrypts independent 16-byte blocks. It is used
// exclusively for the four wrapped key blocks B1..B4 of the vault
// preamble; messages are always exactly one block, so no padding or
// chaining is involved.
type ecbCipher struct {
	block cipher.Block
}

// newECBCipher creates an ECB encryptor/decryptor for the given Twofish
// key. The key must be 16, 24, or 32 bytes.
func newECBCipher(key []byte) (*ecbCipher, error) {
	block, err := twofish.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create Twofish cipher: %w", err)
	}
	return &ecbCipher{block: block}, nil
}

// encrypt encrypts a single 16-byte block.
func (c *ecbCipher) encrypt(src []byte) []byte {
	dst := make([]byte, blockSize)
	c.block.Encrypt(dst, src)
	return dst
}

// decrypt decrypts a single 16-byte block.
func (c *ecbCipher) decrypt(src []byte) []byte {
	dst := make([]byte, blockSize)
	c.block.Decrypt(dst, src)
	return dst
}

// cbcCipher is a stateful CBC encryptor or decryptor over the Twofish
// block. The TLV reader/writer consumes it sequentially; the chaining
// state carries across calls. It applies no padding of its own — the TLV
// layer guarantees block-aligned input.
type cbcCipher struct {
	mode cipher.BlockMode
}

// newCBCEncrypter creates a CBC encryptor with the given key and IV.
func newCBCEncrypter(key, iv []byte) (*cbcCipher, error) {
	block, err := twofish.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create Twofish cipher: %w", err)
	}
	return &cbcCipher{mode: cipher.NewCBCEncrypter(block, iv)}, nil
}

// newCBCDecrypter creates a CBC decryptor with the given key and IV.
func newCBCDecrypter(key, iv []byte) (*cbcCipher, error) {
	block, err := twofish.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create Twofish cipher: %w", err)
	}
	return &cbcCipher{mode: cipher.NewCBCDecrypter(block, iv)}, nil
}

// crypt transforms data, which must be a multiple of the block size, and
// advances the chaining state.
func (c *cbcCipher) crypt(data []byte) []byte {
	dst := make([]byte, len(data))
	c.mode.CryptBlocks(dst, data)
	return dst
}

// randomBytes returns n bytes from the CSRNG. All salts, IVs, key-block
// plaintexts, and TLV padding come from here.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}

// wipe overwrites key material with zeros.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
