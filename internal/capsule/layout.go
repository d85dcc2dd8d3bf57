package capsule

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hpungsan/memoreal/internal/identity"
)

// Maximum encoded lengths, in bytes, of the variable-length fields.
const (
	MaxTitleLen     = 64
	MaxRecipientLen = 64
	MaxMessageLen   = 256
	MaxMediaLen     = 256
	MaxLocationLen  = 64
)

// Fixed header widths.
const (
	DiscriminatorLen = 8
	lenPrefixLen     = 4 // u32 byte length ahead of each text slot
	presenceLen      = 1 // option tag for unlock_at and location
	timestampLen     = 8
	typeLen          = 1
)

// Slot offsets within the encoded record.
const (
	offAuthor    = DiscriminatorLen
	offTitle     = offAuthor + identity.PublicKeyLen
	offRecipient = offTitle + lenPrefixLen + MaxTitleLen
	offMessage   = offRecipient + lenPrefixLen + MaxRecipientLen
	offMedia     = offMessage + lenPrefixLen + MaxMessageLen
	offCreatedAt = offMedia + lenPrefixLen + MaxMediaLen
	offType      = offCreatedAt + timestampLen
	offUnlockAt  = offType + typeLen
	offLocation  = offUnlockAt + presenceLen + timestampLen

	// RecordSize is the storage footprint of every capsule, whatever its content.
	RecordSize = offLocation + presenceLen + lenPrefixLen + MaxLocationLen
)

// Discriminator prefixes every encoded record.
var Discriminator = accountDiscriminator("TimeCapsule")

// ErrCorruptRecord is returned by Decode for bytes that are not a valid record.
var ErrCorruptRecord = errors.New("corrupt capsule record")

// ErrUnknownType is returned for a capsule type outside {general, time_locked}.
var ErrUnknownType = errors.New("unknown capsule type")

// FieldTooLongError reports a variable-length field over its declared maximum.
type FieldTooLongError struct {
	Field  string
	Max    int
	Actual int
}

func (e *FieldTooLongError) Error() string {
	return fmt.Sprintf("%s too long: %d bytes (max %d)", e.Field, e.Actual, e.Max)
}

type fieldLimit struct {
	name  string
	value *string
	max   int
}

// fieldLimits lists the text fields in validation order.
func fieldLimits(f *Fields) []fieldLimit {
	return []fieldLimit{
		{"title", &f.Title, MaxTitleLen},
		{"recipient", &f.Recipient, MaxRecipientLen},
		{"message", &f.Message, MaxMessageLen},
		{"media_reference", &f.MediaReference, MaxMediaLen},
		{"location", f.Location, MaxLocationLen},
	}
}

// Size returns the number of bytes to reserve for a capsule. The result depends
// only on the declared maximums, never on the actual field contents.
func Size(_ Fields) int {
	return RecordSize
}

// Validate checks every field against its declared maximum and returns the
// first violation as a *FieldTooLongError. Absent location is not checked.
func Validate(f Fields) error {
	for _, lim := range fieldLimits(&f) {
		if lim.value == nil {
			continue
		}
		if n := len(*lim.value); n > lim.max {
			return &FieldTooLongError{Field: lim.name, Max: lim.max, Actual: n}
		}
	}
	if !f.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownType, uint8(f.Type))
	}
	return nil
}

// Encode writes r into its fixed-size layout. Unused slot bytes are zero.
func Encode(r *Record) ([]byte, error) {
	if err := Validate(r.Fields); err != nil {
		return nil, err
	}

	buf := make([]byte, RecordSize)
	copy(buf[:DiscriminatorLen], Discriminator[:])
	copy(buf[offAuthor:offTitle], r.Author[:])
	putString(buf, offTitle, r.Title)
	putString(buf, offRecipient, r.Recipient)
	putString(buf, offMessage, r.Message)
	putString(buf, offMedia, r.MediaReference)
	binary.LittleEndian.PutUint64(buf[offCreatedAt:], uint64(r.CreatedAt))
	buf[offType] = byte(r.Type)
	if r.UnlockAt != nil {
		buf[offUnlockAt] = 1
		binary.LittleEndian.PutUint64(buf[offUnlockAt+presenceLen:], uint64(*r.UnlockAt))
	}
	if r.Location != nil {
		buf[offLocation] = 1
		putString(buf, offLocation+presenceLen, *r.Location)
	}
	return buf, nil
}

// Decode parses a fixed-size record produced by Encode.
func Decode(b []byte) (*Record, error) {
	if len(b) != RecordSize {
		return nil, fmt.Errorf("%w: size %d (want %d)", ErrCorruptRecord, len(b), RecordSize)
	}
	if !bytes.Equal(b[:DiscriminatorLen], Discriminator[:]) {
		return nil, fmt.Errorf("%w: bad discriminator", ErrCorruptRecord)
	}

	r := &Record{}
	copy(r.Author[:], b[offAuthor:offTitle])

	var err error
	if r.Title, err = readString(b, offTitle, MaxTitleLen, "title"); err != nil {
		return nil, err
	}
	if r.Recipient, err = readString(b, offRecipient, MaxRecipientLen, "recipient"); err != nil {
		return nil, err
	}
	if r.Message, err = readString(b, offMessage, MaxMessageLen, "message"); err != nil {
		return nil, err
	}
	if r.MediaReference, err = readString(b, offMedia, MaxMediaLen, "media_reference"); err != nil {
		return nil, err
	}

	r.CreatedAt = int64(binary.LittleEndian.Uint64(b[offCreatedAt:]))
	r.Type = Type(b[offType])
	if !r.Type.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, ErrUnknownType)
	}

	switch b[offUnlockAt] {
	case 0:
	case 1:
		v := int64(binary.LittleEndian.Uint64(b[offUnlockAt+presenceLen:]))
		r.UnlockAt = &v
	default:
		return nil, fmt.Errorf("%w: bad unlock_at tag %d", ErrCorruptRecord, b[offUnlockAt])
	}

	switch b[offLocation] {
	case 0:
	case 1:
		loc, err := readString(b, offLocation+presenceLen, MaxLocationLen, "location")
		if err != nil {
			return nil, err
		}
		r.Location = &loc
	default:
		return nil, fmt.Errorf("%w: bad location tag %d", ErrCorruptRecord, b[offLocation])
	}

	return r, nil
}

// putString writes a u32 length followed by s. Callers have validated len(s).
func putString(buf []byte, off int, s string) {
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(s)))
	copy(buf[off+lenPrefixLen:], s)
}

func readString(b []byte, off, max int, field string) (string, error) {
	n := int(binary.LittleEndian.Uint32(b[off:]))
	if n > max {
		return "", fmt.Errorf("%w: %s length %d exceeds %d", ErrCorruptRecord, field, n, max)
	}
	start := off + lenPrefixLen
	return string(b[start : start+n]), nil
}

func accountDiscriminator(name string) [DiscriminatorLen]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [DiscriminatorLen]byte
	copy(d[:], sum[:DiscriminatorLen])
	return d
}
