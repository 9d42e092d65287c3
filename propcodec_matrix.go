package quickentity

import (
	"encoding/json"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	rad2deg = 180.0 / math.Pi
	deg2rad = math.Pi / 180.0
)

// vec3JSON is the {"x":...,"y":...,"z":...} wire shape used by
// SMatrix43's axes, rotation, position and scale fields. mgl64.Vec3 is a
// plain [3]float64 with no field names, so every value that crosses the
// JSON boundary is converted through this type; internal arithmetic
// uses mgl64.Vec3 directly.
type vec3JSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v vec3JSON) toVec3() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

func vec3ToJSON(v mgl64.Vec3) vec3JSON { return vec3JSON{X: v.X(), Y: v.Y(), Z: v.Z()} }

// sMatrix43RT mirrors the RT wire shape of an SMatrix43 property value:
// three row axes and a translation, each a Vector3.
type sMatrix43RT struct {
	XAxis vec3JSON `json:"XAxis"`
	YAxis vec3JSON `json:"YAxis"`
	ZAxis vec3JSON `json:"ZAxis"`
	Trans vec3JSON `json:"Trans"`
}

// sMatrix43QN mirrors the QN wire shape: decomposed rotation (degrees),
// position, and an optional scale (omitted when within tolerance of 1).
type sMatrix43QN struct {
	Rotation vec3JSON  `json:"rotation"`
	Position vec3JSON  `json:"position"`
	Scale    *vec3JSON `json:"scale,omitempty"`
}

// decomposeMatrix43 implements spec.md §4.2 SMatrix43 RT->QN: a
// three.js-style decomposition into Euler angles (Y-XZ order, degrees),
// position and an optional scale, with scale-detection precision gated
// by lossless.
func decomposeMatrix43(raw json.RawMessage, lossless bool) (json.RawMessage, error) {
	var m sMatrix43RT
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, wrapErr(TypeMismatch, err, "SMatrix43 did not have a valid format")
	}

	xAxis, yAxis, zAxis, trans := m.XAxis.toVec3(), m.YAxis.toVec3(), m.ZAxis.toVec3(), m.Trans.toVec3()

	n11, n12, n13 := xAxis.X(), xAxis.Y(), xAxis.Z()
	n21, n22, n23 := yAxis.X(), yAxis.Y(), yAxis.Z()
	n31, n32, n33 := zAxis.X(), zAxis.Y(), zAxis.Z()
	n41, n42, n43 := trans.X(), trans.Y(), trans.Z()
	const n14, n24, n34, n44 = 0.0, 0.0, 0.0, 1.0

	det := n41*(n14*n23*n32-n13*n24*n32-n14*n22*n33+n12*n24*n33+n13*n22*n34-n12*n23*n34) +
		n42*(n11*n23*n34-n11*n24*n33+n14*n21*n33-n13*n21*n34+n13*n24*n31-n14*n23*n31) +
		n43*(n11*n24*n32-n11*n22*n34-n14*n21*n32+n12*n21*n34+n14*n22*n31-n12*n24*n31) +
		n44*(-n13*n22*n31-n11*n23*n32+n11*n22*n33+n13*n21*n32-n12*n21*n33+n12*n23*n31)

	sx := math.Sqrt(n11*n11 + n21*n21 + n31*n31)
	sy := math.Sqrt(n12*n12 + n22*n22 + n32*n32)
	sz := math.Sqrt(n13*n13 + n23*n23 + n33*n33)
	if det < 0 {
		sx = -sx
	}

	invSx, invSy, invSz := 1/sx, 1/sy, 1/sz
	n11, n21, n31 = n11*invSx, n21*invSx, n31*invSx
	n12, n22, n32 = n12*invSy, n22*invSy, n32*invSy
	n13, n23, n33 = n13*invSz, n23*invSz, n33*invSz

	rotX := math.Atan2(n32, n22)
	rotZ := 0.0
	if math.Abs(n13) < 0.9999999 {
		rotX = math.Atan2(-n23, n33)
		rotZ = math.Atan2(-n12, n11)
	}
	rotY := math.Asin(clamp(n13, -1, 1))

	rotation := mgl64.Vec3{rotX * rad2deg, rotY * rad2deg, rotZ * rad2deg}
	position := vec3JSON{X: n41, Y: n42, Z: n43}
	scale := mgl64.Vec3{sx, sy, sz}

	out := sMatrix43QN{Rotation: vec3ToJSON(rotation), Position: position}
	if scaleDiffersFromUnity(scale, lossless) {
		s := vec3ToJSON(scale)
		out.Scale = &s
	}
	return json.Marshal(out)
}

func scaleDiffersFromUnity(scale mgl64.Vec3, lossless bool) bool {
	if lossless {
		return scale.X() != 1.0 || scale.Y() != 1.0 || scale.Z() != 1.0
	}
	return fmt2f(scale.X()) != "1.00" || fmt2f(scale.Y()) != "1.00" || fmt2f(scale.Z()) != "1.00"
}

func fmt2f(v float64) string {
	// matches Rust's format!("{:.2}", v)
	scaled := math.Round(v * 100)
	neg := ""
	if scaled < 0 {
		neg = "-"
		scaled = -scaled
	}
	whole := int64(scaled) / 100
	frac := int64(scaled) % 100
	return neg + itoa(whole) + "." + pad2(frac)
}

func itoa(v int64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := v < 0
	if neg {
		v = -v
	}
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func pad2(v int64) string {
	s := itoa(v)
	if len(s) >= 2 {
		return s
	}
	return "0" + s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// recomposeMatrix43 implements spec.md §4.2 SMatrix43 QN->RT: convert
// Euler degrees (Y-XZ order) to a quaternion, scale by the diagonal
// scale matrix to reconstruct the 3x3, and pack translation.
func recomposeMatrix43(raw json.RawMessage) (json.RawMessage, error) {
	var q sMatrix43QN
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, wrapErr(TypeMismatch, err, "SMatrix43 did not have a valid format")
	}

	x := q.Rotation.X * deg2rad
	y := q.Rotation.Y * deg2rad
	z := q.Rotation.Z * deg2rad

	c1, c2, c3 := math.Cos(x/2), math.Cos(y/2), math.Cos(z/2)
	s1, s2, s3 := math.Sin(x/2), math.Sin(y/2), math.Sin(z/2)

	quat := mgl64.Quat{
		W: c1*c2*c3 - s1*s2*s3,
		V: mgl64.Vec3{
			s1*c2*c3 + c1*s2*s3,
			c1*s2*c3 - s1*c2*s3,
			c1*c2*s3 + s1*s2*c3,
		},
	}

	qx, qy, qz, qw := quat.V.X(), quat.V.Y(), quat.V.Z(), quat.W
	x2, y2, z2 := qx+qx, qy+qy, qz+qz
	xx, xy, xz := qx*x2, qx*y2, qx*z2
	yy, yz, zz := qy*y2, qy*z2, qz*z2
	wx, wy, wz := qw*x2, qw*y2, qw*z2

	scale := mgl64.Vec3{1, 1, 1}
	if q.Scale != nil {
		scale = q.Scale.toVec3()
	}
	sx, sy, sz := scale.X(), scale.Y(), scale.Z()

	out := sMatrix43RT{
		XAxis: vec3JSON{X: (1 - (yy + zz)) * sx, Y: (xy - wz) * sy, Z: (xz + wy) * sz},
		YAxis: vec3JSON{X: (xy + wz) * sx, Y: (1 - (xx + zz)) * sy, Z: (yz - wx) * sz},
		ZAxis: vec3JSON{X: (xz - wy) * sx, Y: (yz + wx) * sy, Z: (1 - (xx + yy)) * sz},
		Trans: q.Position,
	}
	return json.Marshal(out)
}
