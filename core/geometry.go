package core

import "math"

// Vec3 is a scene-space vector. The scene is Y-up with the orbital
// reference axis along +X.
type Vec3 struct {
	X, Y, Z float64
}

// Origin is the scene origin.
var Origin = Vec3{}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns v × other.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalize returns the unit vector along v, or the zero vector when v is zero.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return Vec3{}
	}
	return v.Scale(1 / n)
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Lerp moves v toward to by alpha: v + (to-v)*alpha.
func (v Vec3) Lerp(to Vec3, alpha float64) Vec3 {
	return Vec3{
		X: v.X + (to.X-v.X)*alpha,
		Y: v.Y + (to.Y-v.Y)*alpha,
		Z: v.Z + (to.Z-v.Z)*alpha,
	}
}

// Mat4 is a row-major affine transform. Points are column vectors, so
// a.Mul(b) applies b first, then a.
type Mat4 [16]float64

// Identity returns the identity transform.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns a transform that moves points by t.
func Translation(t Vec3) Mat4 {
	return Mat4{
		1, 0, 0, t.X,
		0, 1, 0, t.Y,
		0, 0, 1, t.Z,
		0, 0, 0, 1,
	}
}

// RotationX returns a right-handed rotation about +X by rad radians.
func RotationX(rad float64) Mat4 {
	s, c := math.Sincos(rad)
	return Mat4{
		1, 0, 0, 0,
		0, c, -s, 0,
		0, s, c, 0,
		0, 0, 0, 1,
	}
}

// RotationY returns a right-handed rotation about +Y by rad radians.
func RotationY(rad float64) Mat4 {
	s, c := math.Sincos(rad)
	return Mat4{
		c, 0, s, 0,
		0, 1, 0, 0,
		-s, 0, c, 0,
		0, 0, 0, 1,
	}
}

// RotationZ returns a right-handed rotation about +Z by rad radians.
func RotationZ(rad float64) Mat4 {
	s, c := math.Sincos(rad)
	return Mat4{
		c, -s, 0, 0,
		s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// EulerXYZ composes rotations in X, Y, Z order (Rx * Ry * Rz), which is the
// convention used for orbital plane angles.
func EulerXYZ(x, y, z float64) Mat4 {
	m := RotationX(x).Mul(RotationY(y))
	return m.Mul(RotationZ(z))
}

// Mul returns m * o.
func (m Mat4) Mul(o Mat4) Mat4 {
	var r Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[row*4+k] * o[k*4+col]
			}
			r[row*4+col] = sum
		}
	}
	return r
}

// MulPoint transforms the point p (w = 1).
func (m Mat4) MulPoint(p Vec3) Vec3 {
	return Vec3{
		X: m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3],
		Y: m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7],
		Z: m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11],
	}
}

// Position returns the translation component, i.e. where the local origin lands.
func (m Mat4) Position() Vec3 {
	return Vec3{X: m[3], Y: m[7], Z: m[11]}
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}
