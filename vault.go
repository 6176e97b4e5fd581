package loxodo

import (
	"bufio"
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// vaultTag is the four-byte magic at the start of every V3 vault.
const vaultTag = "PWS3"

// savedByProgram is written into the 0x06 header field on every save.
const savedByProgram = "loxodo 0.1-go"

// Vault is a collection of password Records in PasswordSafe V3 format,
// together with the preamble state needed to write the file back:
// salt, iteration count, verifier, the four wrapped key blocks B1..B4,
// and the CBC initialization vector.
//
// The on-disk representation is described in the format document shipped
// with Password Safe (docs/formatV3.txt).
type Vault struct {
	Header  *Header
	Records []*Record

	salt      []byte
	iter      uint32
	verifier  []byte
	keyBlocks [4][]byte // B1..B4, each 16 bytes, wrapped under the stretched key
	iv        []byte
	hmacSum   []byte // HMAC most recently read from or written to disk

	keyK []byte // 256-bit Twofish-CBC key for the record stream
	keyL []byte // 256-bit HMAC-SHA-256 key for integrity
}

// Create returns a new empty vault locked by the given passphrase: fresh
// random salt, the minimum iteration count, four freshly wrapped key
// blocks, and a fresh IV.
func Create(passphrase []byte) (*Vault, error) {
	salt, err := randomBytes(32)
	if err != nil {
		return nil, err
	}
	v := &Vault{
		Header: newHeader(),
		salt:   salt,
		iter:   MinIterations,
	}

	stretched := stretchPassphrase(passphrase, v.salt, v.iter)
	defer wipe(stretched)
	verifier := sha256.Sum256(stretched)
	v.verifier = verifier[:]

	ecb, err := newECBCipher(stretched)
	if err != nil {
		return nil, err
	}
	for i := range v.keyBlocks {
		plain, err := randomBytes(blockSize)
		if err != nil {
			return nil, err
		}
		v.keyBlocks[i] = ecb.encrypt(plain)
	}
	v.keyK = append(ecb.decrypt(v.keyBlocks[0]), ecb.decrypt(v.keyBlocks[1])...)
	v.keyL = append(ecb.decrypt(v.keyBlocks[2]), ecb.decrypt(v.keyBlocks[3])...)

	if v.iv, err = randomBytes(blockSize); err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, v.keyL)
	v.hmacSum = mac.Sum(nil)
	return v, nil
}

// Open reads the vault stored at path on the operating system filesystem.
func Open(path string, passphrase []byte) (*Vault, error) {
	return OpenFS(OSFileSystem(), path, passphrase)
}

// OpenFS reads the vault stored at path on the given filesystem. It fails
// with a *VaultVersionError if the file is not a V3 vault, a
// *BadPasswordError if the passphrase does not match the stored verifier,
// and a *VaultFormatError if the file is truncated, malformed, or fails
// the integrity check.
func OpenFS(fsys FileSystem, path string, passphrase []byte) (*Vault, error) {
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault %s: %w", path, err)
	}
	defer f.Close()

	v := &Vault{Header: newHeader()}
	if err := v.readFrom(bufio.NewReader(f), passphrase, path); err != nil {
		return nil, err
	}
	return v, nil
}

// readFrom initializes the vault from the stream, verifying the
// passphrase and the final HMAC.
func (v *Vault) readFrom(r io.Reader, passphrase []byte, path string) error {
	tag := make([]byte, 4)
	if _, err := io.ReadFull(r, tag); err != nil {
		return newFormatError(path, "EOF encountered when reading tag", err)
	}
	if string(tag) != vaultTag {
		return &VaultVersionError{Path: path, Tag: tag}
	}

	v.salt = make([]byte, 32)
	if _, err := io.ReadFull(r, v.salt); err != nil {
		return newFormatError(path, "EOF encountered when reading salt", err)
	}
	var iter [4]byte
	if _, err := io.ReadFull(r, iter[:]); err != nil {
		return newFormatError(path, "EOF encountered when reading iteration count", err)
	}
	v.iter = binary.LittleEndian.Uint32(iter[:])
	if v.iter > maxIterations {
		return newFormatError(path, "implausible stretch iteration count", ErrKeyTooLarge)
	}

	stretched := stretchPassphrase(passphrase, v.salt, v.iter)
	defer wipe(stretched)
	myVerifier := sha256.Sum256(stretched)

	v.verifier = make([]byte, 32)
	if _, err := io.ReadFull(r, v.verifier); err != nil {
		return newFormatError(path, "EOF encountered when reading verifier", err)
	}
	if subtle.ConstantTimeCompare(v.verifier, myVerifier[:]) != 1 {
		return &BadPasswordError{Path: path}
	}

	for i := range v.keyBlocks {
		v.keyBlocks[i] = make([]byte, blockSize)
		if _, err := io.ReadFull(r, v.keyBlocks[i]); err != nil {
			return newFormatError(path, "EOF encountered when reading key blocks", err)
		}
	}
	v.iv = make([]byte, blockSize)
	if _, err := io.ReadFull(r, v.iv); err != nil {
		return newFormatError(path, "EOF encountered when reading IV", err)
	}

	ecb, err := newECBCipher(stretched)
	if err != nil {
		return err
	}
	v.keyK = append(ecb.decrypt(v.keyBlocks[0]), ecb.decrypt(v.keyBlocks[1])...)
	v.keyL = append(ecb.decrypt(v.keyBlocks[2]), ecb.decrypt(v.keyBlocks[3])...)

	dec, err := newCBCDecrypter(v.keyK, v.iv)
	if err != nil {
		return err
	}
	mac := hmac.New(sha256.New, v.keyL)

	// Header fields run until the first sentinel.
	sawEOF := false
	for {
		field, err := readFieldTLV(r, dec)
		if err != nil {
			return err
		}
		if field == nil {
			sawEOF = true
			break
		}
		if field.Type == fieldTypeEnd {
			break
		}
		v.Header.addRawField(*field)
		mac.Write(field.Value)
	}

	// Each following sentinel closes one record.
	current := &Record{}
	for !sawEOF {
		field, err := readFieldTLV(r, dec)
		if err != nil {
			return err
		}
		if field == nil {
			break
		}
		if field.Type == fieldTypeEnd {
			v.Records = append(v.Records, current)
			current = &Record{}
			continue
		}
		mac.Write(field.Value)
		current.addRawField(*field)
	}

	v.hmacSum = make([]byte, 32)
	if _, err := io.ReadFull(r, v.hmacSum); err != nil {
		return newFormatError(path, "EOF encountered when reading HMAC", err)
	}
	if !hmac.Equal(v.hmacSum, mac.Sum(nil)) {
		return newFormatError(path, "file integrity check failed", nil)
	}

	sortRecords(v.Records)
	return nil
}

// Save writes the vault to path on the operating system filesystem.
func (v *Vault) Save(path string, passphrase []byte) error {
	return v.SaveFS(OSFileSystem(), path, passphrase)
}

// SaveFS writes the vault to path on the given filesystem. The vault is
// first written to a sibling temporary file, re-read in full with the
// same passphrase, and only then renamed over the target; on any failure
// the temporary file is removed and the original is left untouched. The
// rename is atomic where the underlying filesystem's rename is.
//
// If passphrase differs from the one the vault was opened or created
// with, the key blocks are re-wrapped under the new stretched key, so the
// saved file opens with the new passphrase only.
func (v *Vault) SaveFS(fsys FileSystem, path string, passphrase []byte) error {
	if v.keyK == nil || v.keyL == nil {
		return ErrVaultClosed
	}

	suffix, err := randomBytes(4)
	if err != nil {
		return err
	}
	tmp := path + "." + hex.EncodeToString(suffix) + ".part"

	f, err := fsys.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temporary vault %s: %w", tmp, err)
	}
	bw := bufio.NewWriter(f)
	err = v.writeTo(bw, passphrase)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		// Full re-read with the same passphrase before the original is
		// touched.
		if _, verr := OpenFS(fsys, tmp, passphrase); verr != nil {
			err = newFormatError(path, "verification of written vault failed", verr)
		}
	}
	if err != nil {
		fsys.Remove(tmp)
		return err
	}
	if err := replaceFile(fsys, tmp, path); err != nil {
		fsys.Remove(tmp)
		return fmt.Errorf("failed to replace vault %s: %w", path, err)
	}
	return nil
}

// replaceFile renames oldpath over newpath, falling back to
// remove-then-rename on filesystems that refuse to rename over an
// existing file.
func replaceFile(fsys FileSystem, oldpath, newpath string) error {
	err := fsys.Rename(oldpath, newpath)
	if err == nil {
		return nil
	}
	if rmErr := fsys.Remove(newpath); rmErr != nil {
		return err
	}
	return fsys.Rename(oldpath, newpath)
}

// writeTo serializes the vault. The salt, iteration count, IV, and —
// unless the passphrase changed — the wrapped key blocks are written
// exactly as read.
func (v *Vault) writeTo(w io.Writer, passphrase []byte) error {
	now := binary.LittleEndian.AppendUint32(nil, uint32(time.Now().Unix()))
	v.Header.setRaw(headerTypeLastSave, now)
	v.Header.setRaw(headerTypeSavedBy, []byte(savedByProgram))

	stretched := stretchPassphrase(passphrase, v.salt, v.iter)
	defer wipe(stretched)
	verifier := sha256.Sum256(stretched)

	if !bytes.Equal(verifier[:], v.verifier) {
		// Passphrase change: re-wrap K and L under the new stretched key.
		// Reusing the old wrapped blocks would produce a file unreadable
		// with either passphrase.
		ecb, err := newECBCipher(stretched)
		if err != nil {
			return err
		}
		v.keyBlocks[0] = ecb.encrypt(v.keyK[:blockSize])
		v.keyBlocks[1] = ecb.encrypt(v.keyK[blockSize:])
		v.keyBlocks[2] = ecb.encrypt(v.keyL[:blockSize])
		v.keyBlocks[3] = ecb.encrypt(v.keyL[blockSize:])
		v.verifier = verifier[:]
	}

	for _, chunk := range [][]byte{
		[]byte(vaultTag),
		v.salt,
		binary.LittleEndian.AppendUint32(nil, v.iter),
		v.verifier,
		v.keyBlocks[0], v.keyBlocks[1], v.keyBlocks[2], v.keyBlocks[3],
		v.iv,
	} {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}

	enc, err := newCBCEncrypter(v.keyK, v.iv)
	if err != nil {
		return err
	}
	mac := hmac.New(sha256.New, v.keyL)
	sentinel := Field{Type: fieldTypeEnd}

	for _, field := range v.Header.sortedFields() {
		if err := writeFieldTLV(w, enc, field); err != nil {
			return err
		}
		mac.Write(field.Value)
	}
	if err := writeFieldTLV(w, enc, sentinel); err != nil {
		return err
	}

	for _, record := range v.Records {
		for _, field := range record.sortedFields() {
			if err := writeFieldTLV(w, enc, field); err != nil {
				return err
			}
			mac.Write(field.Value)
		}
		if err := writeFieldTLV(w, enc, sentinel); err != nil {
			return err
		}
	}

	if _, err := w.Write([]byte(eofMarker)); err != nil {
		return err
	}
	v.hmacSum = mac.Sum(nil)
	if _, err := w.Write(v.hmacSum); err != nil {
		return err
	}
	return nil
}

// Iterations returns the stretch iteration count of the vault.
func (v *Vault) Iterations() uint32 {
	return v.iter
}

// Close zeroes the record and HMAC keys. The vault cannot be saved
// afterwards.
func (v *Vault) Close() {
	wipe(v.keyK)
	wipe(v.keyL)
	v.keyK = nil
	v.keyL = nil
}
