// Package loxodo reads, mutates, and writes password vaults in the
// Password Safe V3 on-disk format.
//
// # Overview
//
// A vault is a single file holding an encrypted, HMAC-authenticated
// collection of password records, unlocked by a user passphrase. The
// package implements the complete codec: salted SHA-256 key stretching,
// Twofish-ECB unwrapping of the record and HMAC keys, the Twofish-CBC
// TLV record stream, HMAC-SHA-256 integrity verification, and atomic
// file replacement with a full re-read verification before commit.
//
// # Basic Usage
//
//	// Open an existing vault
//	vault, err := loxodo.Open("/home/alice/passwords.psafe3", []byte("secret"))
//	if err != nil {
//	    panic(err)
//	}
//	defer vault.Close()
//
//	for _, record := range vault.Records {
//	    fmt.Println(record.Title(), record.User())
//	}
//
//	// Add a record and save
//	record := loxodo.NewRecord()
//	record.SetTitle("gmail")
//	record.SetUser("alice")
//	record.SetPassword("hunter2")
//	vault.Records = append(vault.Records, record)
//
//	if err := vault.Save("/home/alice/passwords.psafe3", []byte("secret")); err != nil {
//	    panic(err)
//	}
//
// # File Format
//
// All multi-byte integers are little-endian:
//   - Tag (4 bytes): "PWS3"
//   - Salt (32 bytes): random salt for key stretching
//   - Iterations (4 bytes): SHA-256 stretch rounds
//   - Verifier (32 bytes): SHA-256 of the stretched key
//   - B1..B4 (4 x 16 bytes): record key K and HMAC key L, each wrapped
//     as two Twofish-ECB blocks under the stretched key
//   - IV (16 bytes): Twofish-CBC initialization vector
//   - TLV stream (16-byte aligned): header fields, then record fields,
//     each group closed by a type-0xFF sentinel field
//   - End-of-file marker (16 bytes): "PWS3-EOFPWS3-EOF" in cleartext
//   - HMAC (32 bytes): HMAC-SHA-256 over the value bytes of every
//     non-sentinel field, in write order
//
// # Security Considerations
//
// Protected against:
//   - Unauthorized access to the vault at rest
//   - Tampering, truncation, and corruption of the record stream
//
// Not protected against:
//   - Memory dumps while a vault is open
//   - Side-channel attacks on the host
//   - Weak passphrases combined with low iteration counts
//
// Verifier and HMAC comparisons are constant-time. The record and HMAC
// keys are zeroed when Close is called.
//
// # Concurrency
//
// A Vault is not safe for concurrent mutation. An opened Vault may be
// shared across readers as long as no writer is active.
package loxodo
