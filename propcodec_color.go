package quickentity

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type sColorRGBRT struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

type sColorRGBART struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

func roundToByte(v float64) uint8 {
	return uint8(clamp(math.Round(v*255), 0, 255))
}

// convertColorRGBToQN packs an SColorRGB's three float channels into a
// "#rrggbb" hex string (spec.md §4.2 "SColorRGB/SColorRGBA").
func convertColorRGBToQN(raw json.RawMessage) (json.RawMessage, error) {
	var c sColorRGBRT
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, wrapErr(TypeMismatch, err, "SColorRGB did not have a valid format")
	}
	hex := fmt.Sprintf("#%02x%02x%02x", roundToByte(c.R), roundToByte(c.G), roundToByte(c.B))
	return json.Marshal(hex)
}

// convertColorRGBAToQN packs an SColorRGBA into "#rrggbbaa".
func convertColorRGBAToQN(raw json.RawMessage) (json.RawMessage, error) {
	var c sColorRGBART
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, wrapErr(TypeMismatch, err, "SColorRGBA did not have a valid format")
	}
	hex := fmt.Sprintf("#%02x%02x%02x%02x", roundToByte(c.R), roundToByte(c.G), roundToByte(c.B), roundToByte(c.A))
	return json.Marshal(hex)
}

func parseColorHex(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", wrapErr(TypeMismatch, err, "color value must be a string")
	}
	s = strings.TrimPrefix(s, "#")
	return s, nil
}

func hexByte(s string, offset int) (float64, error) {
	v, err := strconv.ParseUint(s[offset:offset+2], 16, 8)
	if err != nil {
		return 0, wrapErr(TypeMismatch, err, "invalid color channel %q", s[offset:offset+2])
	}
	return float64(v) / 255.0, nil
}

// convertColorRGBToRT unpacks a "#rrggbb" string into an SColorRGB.
func convertColorRGBToRT(raw json.RawMessage) (json.RawMessage, error) {
	s, err := parseColorHex(raw)
	if err != nil {
		return nil, err
	}
	if len(s) != 6 {
		return nil, newErr(TypeMismatch, "%q is not a valid SColorRGB hex string", s)
	}
	r, err := hexByte(s, 0)
	if err != nil {
		return nil, err
	}
	g, err := hexByte(s, 2)
	if err != nil {
		return nil, err
	}
	b, err := hexByte(s, 4)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sColorRGBRT{R: r, G: g, B: b})
}

// convertColorRGBAToRT unpacks a "#rrggbbaa" string into an SColorRGBA.
func convertColorRGBAToRT(raw json.RawMessage) (json.RawMessage, error) {
	s, err := parseColorHex(raw)
	if err != nil {
		return nil, err
	}
	if len(s) != 8 {
		return nil, newErr(TypeMismatch, "%q is not a valid SColorRGBA hex string", s)
	}
	r, err := hexByte(s, 0)
	if err != nil {
		return nil, err
	}
	g, err := hexByte(s, 2)
	if err != nil {
		return nil, err
	}
	b, err := hexByte(s, 4)
	if err != nil {
		return nil, err
	}
	a, err := hexByte(s, 6)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sColorRGBART{R: r, G: g, B: b, A: a})
}
