package loxodo

import (
	"encoding/binary"
	"io"
	"sort"
	"strings"
	"time"
)

// Field is the raw, on-disk representation of a single vault field: a type
// byte and a value byte string. The four-byte length is implied by the
// value.
type Field struct {
	Type  byte
	Value []byte
}

// fieldTypeEnd is the sentinel field type closing the header and each
// record in the TLV stream. Sentinels carry an empty value and are never
// fed into the HMAC.
const fieldTypeEnd byte = 0xFF

// eofMarker terminates the ciphertext region. It is written in cleartext
// and recognized on the raw stream, before decryption.
const eofMarker = "PWS3-EOFPWS3-EOF"

// maxFieldLen bounds a single field value. The length prefix is read
// before the HMAC is verified, so an attacker-controlled length must not
// drive allocation; 16 MiB is far above any legitimate vault field.
const maxFieldLen = 16 << 20

// Header field types recognized by this package. All other header types
// round-trip verbatim.
const (
	headerTypeLastSave byte = 0x04 // last-save timestamp, u32 LE epoch seconds
	headerTypeSavedBy  byte = 0x06 // program that performed the save, UTF-8
)

// Record field types.
const (
	fieldTypeUUID     byte = 0x01
	fieldTypeGroup    byte = 0x02
	fieldTypeTitle    byte = 0x03
	fieldTypeUser     byte = 0x04
	fieldTypeNotes    byte = 0x05
	fieldTypePassword byte = 0x06
	fieldTypeLastMod  byte = 0x0C
	fieldTypeURL      byte = 0x0D
)

// readFieldTLV reads one field from the CBC-encrypted TLV stream. It
// returns (nil, nil) when the raw stream yields the end-of-file marker.
//
// Wire layout of one field: 4-byte LE length, 1-byte type, value, padded
// to the next 16-byte boundary. The first block carries up to 11 value
// bytes; a longer value continues across ceil((len-11)/16) further
// blocks. Trailing padding bytes are discarded.
func readFieldTLV(r io.Reader, dec *cbcCipher) (*Field, error) {
	buf := make([]byte, blockSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, newFormatError("", "EOF encountered when parsing record field", err)
	}
	if string(buf) == eofMarker {
		return nil, nil
	}
	data := dec.crypt(buf)
	rawLen := binary.LittleEndian.Uint32(data[0:4])
	if rawLen > maxFieldLen {
		return nil, newFormatError("", "field length exceeds limit", ErrFieldTooLong)
	}
	rawType := data[4]
	value := append([]byte(nil), data[5:]...)
	if rawLen > 11 {
		blocks := (int(rawLen) + 4) / blockSize
		for i := 0; i < blocks; i++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, newFormatError("", "EOF encountered when parsing record field", err)
			}
			value = append(value, dec.crypt(buf)...)
		}
	}
	return &Field{Type: rawType, Value: value[:rawLen]}, nil
}

// writeFieldTLV writes one field to the CBC-encrypted TLV stream, padding
// to the 16-byte boundary with CSRNG bytes.
func writeFieldTLV(w io.Writer, enc *cbcCipher, field Field) error {
	if len(field.Value) > maxFieldLen {
		return newFormatError("", "field length exceeds limit", ErrFieldTooLong)
	}
	data := make([]byte, 0, 5+len(field.Value)+blockSize)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(field.Value)))
	data = append(data, field.Type)
	data = append(data, field.Value...)
	if rem := len(data) % blockSize; rem != 0 {
		pad, err := randomBytes(blockSize - rem)
		if err != nil {
			return err
		}
		data = append(data, pad...)
	}
	if _, err := w.Write(enc.crypt(data)); err != nil {
		return err
	}
	return nil
}

// Header holds the vault's header fields, keyed by field type.
type Header struct {
	fields map[byte]Field
}

func newHeader() *Header {
	return &Header{fields: make(map[byte]Field)}
}

func (h *Header) addRawField(field Field) {
	h.fields[field.Type] = field
}

func (h *Header) setRaw(typ byte, value []byte) {
	h.fields[typ] = Field{Type: typ, Value: value}
}

// Raw returns a copy of the raw value of the header field with the given
// type, and whether the field is present.
func (h *Header) Raw(typ byte) ([]byte, bool) {
	field, ok := h.fields[typ]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), field.Value...), true
}

// RawFields returns a copy of the header's field map, keyed by type.
func (h *Header) RawFields() map[byte][]byte {
	m := make(map[byte][]byte, len(h.fields))
	for typ, field := range h.fields {
		m[typ] = append([]byte(nil), field.Value...)
	}
	return m
}

// LastSave returns the last-save timestamp, or the zero time if the field
// is missing or malformed.
func (h *Header) LastSave() time.Time {
	field, ok := h.fields[headerTypeLastSave]
	if !ok || len(field.Value) != 4 {
		return time.Time{}
	}
	return time.Unix(int64(binary.LittleEndian.Uint32(field.Value)), 0)
}

// LastSavedBy returns the identifier of the program that performed the
// last save, decoded leniently as UTF-8.
func (h *Header) LastSavedBy() string {
	field, ok := h.fields[headerTypeSavedBy]
	if !ok {
		return ""
	}
	return strings.ToValidUTF8(string(field.Value), "�")
}

// sortedFields returns the header fields ordered by ascending type byte,
// the order in which they are serialized.
func (h *Header) sortedFields() []Field {
	fields := make([]Field, 0, len(h.fields))
	for _, field := range h.fields {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Type < fields[j].Type })
	return fields
}
