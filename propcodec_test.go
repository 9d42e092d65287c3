package quickentity

import (
	"encoding/json"
	"testing"
)

func TestConvertStringPropertyNameToRTID_hashedWhenSevenOrEightHexDigits(t *testing.T) {
	cases := []struct {
		name   string
		isHash bool
	}{
		{"2852423392", true},  // 0xAA0486E0, 8 hex digits
		{"11274561", false},   // 0xAC0941, 6 hex digits
		{"m_bVisible", false}, // not numeric at all
	}
	for _, c := range cases {
		id := convertStringPropertyNameToRTID(c.name)
		if id.IsInt != c.isHash {
			t.Errorf("convertStringPropertyNameToRTID(%q).IsInt = %v, want %v", c.name, id.IsInt, c.isHash)
		}
	}
}

func TestConvertGuidRoundTrip(t *testing.T) {
	rt := json.RawMessage(`{"_a":3405691582,"_b":48879,"_c":4660,"_d":1,"_e":2,"_f":3,"_g":4,"_h":5,"_i":6,"_j":7,"_k":8}`)
	qn, err := convertGuidToQN(rt)
	if err != nil {
		t.Fatalf("convertGuidToQN returned error: %v", err)
	}

	back, err := convertGuidToRT(qn)
	if err != nil {
		t.Fatalf("convertGuidToRT returned error: %v", err)
	}

	var wantAny, gotAny map[string]any
	if err := json.Unmarshal(rt, &wantAny); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(back, &gotAny); err != nil {
		t.Fatal(err)
	}
	for k, v := range wantAny {
		if gotAny[k] != v {
			t.Errorf("field %s = %v, want %v (full round trip: %s -> %s -> %s)", k, gotAny[k], v, rt, qn, back)
		}
	}
}

func TestConvertColorRGBRoundTrip(t *testing.T) {
	rt := json.RawMessage(`{"r":1,"g":0.5019607843137255,"b":0}`)
	qn, err := convertColorRGBToQN(rt)
	if err != nil {
		t.Fatalf("convertColorRGBToQN returned error: %v", err)
	}
	var hex string
	if err := json.Unmarshal(qn, &hex); err != nil {
		t.Fatal(err)
	}
	if hex != "#ff8000" {
		t.Errorf("hex = %q, want #ff8000", hex)
	}

	back, err := convertColorRGBToRT(qn)
	if err != nil {
		t.Fatalf("convertColorRGBToRT returned error: %v", err)
	}
	var c sColorRGBRT
	if err := json.Unmarshal(back, &c); err != nil {
		t.Fatal(err)
	}
	if c.R != 1 || c.B != 0 {
		t.Errorf("round-tripped color = %+v", c)
	}
}

func TestMatrix43IdentityRoundTrip(t *testing.T) {
	identity := json.RawMessage(`{
		"XAxis":{"x":1,"y":0,"z":0},
		"YAxis":{"x":0,"y":1,"z":0},
		"ZAxis":{"x":0,"y":0,"z":1},
		"Trans":{"x":0,"y":0,"z":0}
	}`)
	qn, err := decomposeMatrix43(identity, true)
	if err != nil {
		t.Fatalf("decomposeMatrix43 returned error: %v", err)
	}
	var m sMatrix43QN
	if err := json.Unmarshal(qn, &m); err != nil {
		t.Fatal(err)
	}
	if m.Scale != nil {
		t.Errorf("identity matrix should decompose with no scale field, got %+v", *m.Scale)
	}
	if m.Rotation.X != 0 || m.Rotation.Y != 0 || m.Rotation.Z != 0 {
		t.Errorf("identity matrix should decompose to zero rotation, got %+v", m.Rotation)
	}

	back, err := recomposeMatrix43(qn)
	if err != nil {
		t.Fatalf("recomposeMatrix43 returned error: %v", err)
	}
	var rt sMatrix43RT
	if err := json.Unmarshal(back, &rt); err != nil {
		t.Fatal(err)
	}
	const eps = 1e-9
	if absf(rt.XAxis.X-1) > eps || absf(rt.YAxis.Y-1) > eps || absf(rt.ZAxis.Z-1) > eps {
		t.Errorf("round-tripped identity matrix = %+v", rt)
	}
}

func TestMatrix43UniformScaleRoundTrip(t *testing.T) {
	scaled := json.RawMessage(`{
		"XAxis":{"x":2,"y":0,"z":0},
		"YAxis":{"x":0,"y":2,"z":0},
		"ZAxis":{"x":0,"y":0,"z":2},
		"Trans":{"x":1,"y":2,"z":3}
	}`)
	qn, err := decomposeMatrix43(scaled, true)
	if err != nil {
		t.Fatalf("decomposeMatrix43 returned error: %v", err)
	}
	var m sMatrix43QN
	if err := json.Unmarshal(qn, &m); err != nil {
		t.Fatal(err)
	}
	if m.Scale == nil {
		t.Fatalf("a 2x uniform scale should be emitted explicitly")
	}
	const eps = 1e-9
	if absf(m.Scale.X-2) > eps || absf(m.Scale.Y-2) > eps || absf(m.Scale.Z-2) > eps {
		t.Errorf("scale = %+v, want 2,2,2", *m.Scale)
	}
	if m.Position.X != 1 || m.Position.Y != 2 || m.Position.Z != 3 {
		t.Errorf("position = %+v, want 1,2,3", m.Position)
	}

	back, err := recomposeMatrix43(qn)
	if err != nil {
		t.Fatalf("recomposeMatrix43 returned error: %v", err)
	}
	var rt sMatrix43RT
	if err := json.Unmarshal(back, &rt); err != nil {
		t.Fatal(err)
	}
	if absf(rt.XAxis.X-2) > eps || absf(rt.XAxis.Y) > eps || absf(rt.XAxis.Z) > eps {
		t.Errorf("round-tripped XAxis = %+v, want (2,0,0)", rt.XAxis)
	}
	if absf(rt.YAxis.Y-2) > eps || absf(rt.YAxis.X) > eps || absf(rt.YAxis.Z) > eps {
		t.Errorf("round-tripped YAxis = %+v, want (0,2,0)", rt.YAxis)
	}
	if absf(rt.ZAxis.Z-2) > eps || absf(rt.ZAxis.X) > eps || absf(rt.ZAxis.Y) > eps {
		t.Errorf("round-tripped ZAxis = %+v, want (0,0,2)", rt.ZAxis)
	}
	if rt.Trans.X != 1 || rt.Trans.Y != 2 || rt.Trans.Z != 3 {
		t.Errorf("round-tripped Trans = %+v, want (1,2,3)", rt.Trans)
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
