package loxodo

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// Known-answer vectors from the Twofish paper ("Twofish: A 128-Bit Block
// Cipher", full keysize test vectors). Everything else in this package is
// meaningless if these fail.
var twofishKATs = []struct {
	key        string
	plaintext  string
	ciphertext string
}{
	{
		key:        "00000000000000000000000000000000",
		plaintext:  "00000000000000000000000000000000",
		ciphertext: "9f589f5cf6122c32b6bfec2f2ae8c35a",
	},
	{
		key:        "0123456789abcdeffedcba98765432100011223344556677",
		plaintext:  "00000000000000000000000000000000",
		ciphertext: "cfd1d2e5a9be9cdf501f13b892bd2248",
	},
	{
		key:        "0123456789abcdeffedcba987654321000112233445566778899aabbccddeeff",
		plaintext:  "00000000000000000000000000000000",
		ciphertext: "37527be0052334b89f0cfccae87cfa20",
	},
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex in test vector: %v", err)
	}
	return b
}

func TestECBCipher_KnownAnswers(t *testing.T) {
	for _, kat := range twofishKATs {
		key := mustHex(t, kat.key)
		plaintext := mustHex(t, kat.plaintext)
		ciphertext := mustHex(t, kat.ciphertext)

		ecb, err := newECBCipher(key)
		if err != nil {
			t.Fatalf("newECBCipher(%d-byte key): %v", len(key), err)
		}

		got := ecb.encrypt(plaintext)
		if !bytes.Equal(got, ciphertext) {
			t.Errorf("encrypt with %d-byte key:\ngot:  %x\nwant: %x", len(key), got, ciphertext)
		}

		back := ecb.decrypt(ciphertext)
		if !bytes.Equal(back, plaintext) {
			t.Errorf("decrypt with %d-byte key:\ngot:  %x\nwant: %x", len(key), back, plaintext)
		}
	}
}

func TestECBCipher_BadKeySize(t *testing.T) {
	if _, err := newECBCipher(make([]byte, 17)); err == nil {
		t.Fatal("expected error for 17-byte key")
	}
}

func TestCBCCipher_RoundTrip(t *testing.T) {
	key := mustHex(t, "0123456789abcdeffedcba987654321000112233445566778899aabbccddeeff")
	iv := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	plaintext := []byte("exactly forty-eight bytes of plaintext material!")
	if len(plaintext)%blockSize != 0 {
		t.Fatalf("test plaintext must be block-aligned, got %d bytes", len(plaintext))
	}

	enc, err := newCBCEncrypter(key, iv)
	if err != nil {
		t.Fatalf("newCBCEncrypter: %v", err)
	}
	ciphertext := enc.crypt(plaintext)

	dec, err := newCBCDecrypter(key, iv)
	if err != nil {
		t.Fatalf("newCBCDecrypter: %v", err)
	}
	got := dec.crypt(ciphertext)
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch:\ngot:  %q\nwant: %q", got, plaintext)
	}
}

// CBC chaining must carry across crypt calls: encrypting block by block
// has to equal encrypting everything at once, and identical plaintext
// blocks must produce distinct ciphertext blocks.
func TestCBCCipher_Chaining(t *testing.T) {
	key := mustHex(t, "00000000000000000000000000000000")
	iv := mustHex(t, "ffeeddccbbaa99887766554433221100")
	plaintext := bytes.Repeat([]byte{0x42}, 3*blockSize)

	oneShot, err := newCBCEncrypter(key, iv)
	if err != nil {
		t.Fatalf("newCBCEncrypter: %v", err)
	}
	want := oneShot.crypt(plaintext)

	if bytes.Equal(want[:blockSize], want[blockSize:2*blockSize]) {
		t.Error("identical plaintext blocks produced identical ciphertext blocks")
	}

	incremental, err := newCBCEncrypter(key, iv)
	if err != nil {
		t.Fatalf("newCBCEncrypter: %v", err)
	}
	var got []byte
	for i := 0; i < len(plaintext); i += blockSize {
		got = append(got, incremental.crypt(plaintext[i:i+blockSize])...)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("incremental CBC differs from one-shot:\ngot:  %x\nwant: %x", got, want)
	}
}

func TestRandomBytes(t *testing.T) {
	a, err := randomBytes(32)
	if err != nil {
		t.Fatalf("randomBytes: %v", err)
	}
	b, err := randomBytes(32)
	if err != nil {
		t.Fatalf("randomBytes: %v", err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("wrong lengths: %d, %d", len(a), len(b))
	}
	if bytes.Equal(a, b) {
		t.Fatal("two 32-byte random reads were identical")
	}
}

func TestWipe(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	wipe(b)
	if !bytes.Equal(b, []byte{0, 0, 0, 0}) {
		t.Fatalf("wipe left %x", b)
	}
}
