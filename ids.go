package quickentity

import (
	"strconv"
)

// EntityID is the only identity that survives an RT<->QN round trip: an
// unsigned 64-bit value, rendered on the wire as a zero-padded lowercase
// 16-hex-digit string.
type EntityID uint64

// String renders the zero-padded lowercase 16-hex-digit form.
func (id EntityID) String() string {
	return padHex16(uint64(id))
}

func padHex16(v uint64) string {
	s := strconv.FormatUint(v, 16)
	if len(s) >= 16 {
		return s
	}
	buf := make([]byte, 16)
	for i := range buf {
		buf[i] = '0'
	}
	copy(buf[16-len(s):], s)
	return string(buf)
}

// ParseEntityID parses a hex string (of any length/case) into an EntityID.
func ParseEntityID(s string) (EntityID, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, wrapErr(TypeMismatch, err, "invalid entity id %q", s)
	}
	return EntityID(v), nil
}

// MarshalText implements encoding.TextMarshaler so EntityID can be used
// directly as a map key in the ordered map that backs Entity.Entities.
func (id EntityID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *EntityID) UnmarshalText(text []byte) error {
	v, err := ParseEntityID(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// sentinelNullEntityID is the RT sentinel entity ID representing a null
// (Short(None)) reference, per spec.md §4.1.
const sentinelNullEntityID uint64 = 0xFFFF_FFFF_FFFF_FFFF
