package quickentity

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// zGuidRT mirrors the RT wire shape of a ZGuid: eleven fields (_a.._k,
// one 32-bit, two 16-bit and eight 8-bit) matching the classic GUID byte
// grouping (spec.md §4.2 "ZGuid").
type zGuidRT struct {
	M_IdLo  uint32 `json:"_a"`
	M_IdMid uint16 `json:"_b"`
	M_IdHi  uint16 `json:"_c"`
	M_IdD0  uint8  `json:"_d"`
	M_IdD1  uint8  `json:"_e"`
	M_IdD2  uint8  `json:"_f"`
	M_IdD3  uint8  `json:"_g"`
	M_IdD4  uint8  `json:"_h"`
	M_IdD5  uint8  `json:"_i"`
	M_IdD6  uint8  `json:"_j"`
	M_IdD7  uint8  `json:"_k"`
}

// convertGuidToQN renders an RT ZGuid in canonical 8-4-4-4-12 hex-string
// form, grounded on google/uuid for parsing/formatting instead of
// hand-rolled hex packing.
func convertGuidToQN(raw json.RawMessage) (json.RawMessage, error) {
	var g zGuidRT
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, wrapErr(TypeMismatch, err, "ZGuid did not have a valid format")
	}
	var b [16]byte
	b[0], b[1], b[2], b[3] = byte(g.M_IdLo>>24), byte(g.M_IdLo>>16), byte(g.M_IdLo>>8), byte(g.M_IdLo)
	b[4], b[5] = byte(g.M_IdMid>>8), byte(g.M_IdMid)
	b[6], b[7] = byte(g.M_IdHi>>8), byte(g.M_IdHi)
	b[8], b[9] = g.M_IdD0, g.M_IdD1
	b[10], b[11], b[12], b[13], b[14], b[15] = g.M_IdD2, g.M_IdD3, g.M_IdD4, g.M_IdD5, g.M_IdD6, g.M_IdD7

	id, err := uuid.FromBytes(b[:])
	if err != nil {
		return nil, wrapErr(TypeMismatch, err, "ZGuid bytes did not form a valid UUID")
	}
	return json.Marshal(strings.ToLower(id.String()))
}

// convertGuidToRT parses a canonical GUID string back into the RT byte
// grouping.
func convertGuidToRT(raw json.RawMessage) (json.RawMessage, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, wrapErr(TypeMismatch, err, "ZGuid must be a string")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, wrapErr(TypeMismatch, err, "%q is not a valid ZGuid", s)
	}
	b := id[:]
	g := zGuidRT{
		M_IdLo:  uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]),
		M_IdMid: uint16(b[4])<<8 | uint16(b[5]),
		M_IdHi:  uint16(b[6])<<8 | uint16(b[7]),
		M_IdD0:  b[8],
		M_IdD1:  b[9],
		M_IdD2:  b[10],
		M_IdD3:  b[11],
		M_IdD4:  b[12],
		M_IdD5:  b[13],
		M_IdD6:  b[14],
		M_IdD7:  b[15],
	}
	return json.Marshal(g)
}
