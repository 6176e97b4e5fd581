package loxodo

import (
	"encoding/binary"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Record is a single password entry: a map of raw on-disk fields with
// typed accessors layered on top. The raw map is the only representation;
// getters decode on demand and setters encode on assignment, so the two
// views cannot drift apart. Unknown field types are retained and
// round-trip untouched.
//
// The zero value is an empty record with no UUID; use NewRecord for a
// record with a fresh UUID and modification time.
type Record struct {
	fields map[byte]Field
}

// NewRecord returns a record with a freshly generated UUIDv4 and the
// current time as its modification time.
func NewRecord() *Record {
	r := &Record{}
	r.SetUUID(uuid.New())
	r.SetLastMod(time.Now())
	return r
}

func (r *Record) addRawField(field Field) {
	if r.fields == nil {
		r.fields = make(map[byte]Field)
	}
	r.fields[field.Type] = field
}

// touch bumps the modification time. SetLastMod is the one setter that
// does not call back into touch, so this cannot recurse.
func (r *Record) touch() {
	r.SetLastMod(time.Now())
}

// Raw returns a copy of the raw value of the field with the given type,
// and whether the field is present.
func (r *Record) Raw(typ byte) ([]byte, bool) {
	field, ok := r.fields[typ]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), field.Value...), true
}

// RawFields returns a copy of the record's field map, keyed by type.
func (r *Record) RawFields() map[byte][]byte {
	m := make(map[byte][]byte, len(r.fields))
	for typ, field := range r.fields {
		m[typ] = append([]byte(nil), field.Value...)
	}
	return m
}

// stringField decodes a field value leniently as UTF-8, substituting the
// replacement character for invalid sequences. Legacy vaults may contain
// non-UTF-8 strings, so a lossy read is not an error.
func (r *Record) stringField(typ byte) string {
	field, ok := r.fields[typ]
	if !ok {
		return ""
	}
	return strings.ToValidUTF8(string(field.Value), "�")
}

// setStringField validates the string, stores its encoding, and bumps the
// modification time.
func (r *Record) setStringField(typ byte, name, value string) error {
	if !utf8.ValidString(value) {
		return &ValidationError{Field: name, Message: "string is not valid UTF-8"}
	}
	r.addRawField(Field{Type: typ, Value: []byte(value)})
	r.touch()
	return nil
}

// UUID returns the record's UUID, or uuid.Nil if the record has none.
// The on-disk layout is the little-endian byte order used by the V3
// format.
func (r *Record) UUID() uuid.UUID {
	field, ok := r.fields[fieldTypeUUID]
	if !ok || len(field.Value) != 16 {
		return uuid.Nil
	}
	var le [16]byte
	copy(le[:], field.Value)
	return uuid.UUID(uuidSwapLE(le))
}

// SetUUID sets the record's UUID and bumps the modification time.
func (r *Record) SetUUID(id uuid.UUID) {
	le := uuidSwapLE([16]byte(id))
	r.addRawField(Field{Type: fieldTypeUUID, Value: le[:]})
	r.touch()
}

// uuidSwapLE converts between the RFC 4122 byte order and the
// little-endian layout stored on disk. The swap is its own inverse.
func uuidSwapLE(b [16]byte) [16]byte {
	return [16]byte{
		b[3], b[2], b[1], b[0],
		b[5], b[4],
		b[7], b[6],
		b[8], b[9], b[10], b[11], b[12], b[13], b[14], b[15],
	}
}

// Group returns the record's group, or "" if unset.
func (r *Record) Group() string { return r.stringField(fieldTypeGroup) }

// SetGroup sets the record's group and bumps the modification time.
func (r *Record) SetGroup(value string) error {
	return r.setStringField(fieldTypeGroup, "group", value)
}

// Title returns the record's title, or "" if unset.
func (r *Record) Title() string { return r.stringField(fieldTypeTitle) }

// SetTitle sets the record's title and bumps the modification time.
func (r *Record) SetTitle(value string) error {
	return r.setStringField(fieldTypeTitle, "title", value)
}

// User returns the record's user name, or "" if unset.
func (r *Record) User() string { return r.stringField(fieldTypeUser) }

// SetUser sets the record's user name and bumps the modification time.
func (r *Record) SetUser(value string) error {
	return r.setStringField(fieldTypeUser, "user", value)
}

// Notes returns the record's notes, or "" if unset.
func (r *Record) Notes() string { return r.stringField(fieldTypeNotes) }

// SetNotes sets the record's notes and bumps the modification time.
func (r *Record) SetNotes(value string) error {
	return r.setStringField(fieldTypeNotes, "notes", value)
}

// Password returns the record's password, or "" if unset.
func (r *Record) Password() string { return r.stringField(fieldTypePassword) }

// SetPassword sets the record's password and bumps the modification time.
func (r *Record) SetPassword(value string) error {
	return r.setStringField(fieldTypePassword, "password", value)
}

// URL returns the record's URL, or "" if unset.
func (r *Record) URL() string { return r.stringField(fieldTypeURL) }

// SetURL sets the record's URL and bumps the modification time.
func (r *Record) SetURL(value string) error {
	return r.setStringField(fieldTypeURL, "url", value)
}

// LastMod returns the record's modification time, or the zero time if the
// field is missing or not exactly four bytes.
func (r *Record) LastMod() time.Time {
	field, ok := r.fields[fieldTypeLastMod]
	if !ok || len(field.Value) != 4 {
		return time.Time{}
	}
	return time.Unix(int64(binary.LittleEndian.Uint32(field.Value)), 0)
}

// SetLastMod sets the record's modification time. It is the one setter
// that does not itself bump the modification time.
func (r *Record) SetLastMod(t time.Time) {
	value := binary.LittleEndian.AppendUint32(nil, uint32(t.Unix()))
	r.addRawField(Field{Type: fieldTypeLastMod, Value: value})
}

// IsCorresponding reports whether both records represent the same logical
// entry: matched by UUID when both carry one, by title otherwise.
func (r *Record) IsCorresponding(other *Record) bool {
	if r.UUID() == uuid.Nil || other.UUID() == uuid.Nil {
		return r.Title() == other.Title()
	}
	return r.UUID() == other.UUID()
}

// IsNewerThan reports whether this record was modified strictly later
// than the other.
func (r *Record) IsNewerThan(other *Record) bool {
	return r.LastMod().After(other.LastMod())
}

// Merge discards this record's fields and re-ingests the other record's
// fields one by one, so every accessor afterwards reflects the other
// record.
func (r *Record) Merge(other *Record) {
	r.fields = make(map[byte]Field, len(other.fields))
	for _, field := range other.fields {
		r.addRawField(Field{Type: field.Type, Value: append([]byte(nil), field.Value...)})
	}
}

// Duplicate returns a copy of the record with a fresh UUID, the current
// modification time, and " (copy)" appended to the title.
func (r *Record) Duplicate() *Record {
	d := &Record{}
	d.Merge(r)
	d.SetUUID(uuid.New())
	d.SetLastMod(time.Now())
	_ = d.SetTitle(r.Title() + " (copy)")
	return d
}

// sortKey orders records by group, then title.
func (r *Record) sortKey() string {
	return r.stringField(fieldTypeGroup) + r.stringField(fieldTypeTitle)
}

// sortedFields returns the record's fields ordered by ascending type
// byte, the order in which they are serialized.
func (r *Record) sortedFields() []Field {
	fields := make([]Field, 0, len(r.fields))
	for _, field := range r.fields {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Type < fields[j].Type })
	return fields
}

// sortRecords orders records by (group, title), the order the vault keeps
// after load and on every save.
func sortRecords(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].sortKey() < records[j].sortKey()
	})
}
