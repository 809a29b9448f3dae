package posemath

import "math"

// Quat represents a unit rotation quaternion (x, y, z, w).
type Quat [4]float64

func QuatIdentity() Quat {
	return Quat{0, 0, 0, 1}
}

// AngleAxis returns the rotation of deg degrees about axis.
func AngleAxis(deg float64, axis Vec3) Quat {
	n := axis.Normalize()
	if n.IsZero() {
		return QuatIdentity()
	}
	half := Deg2Rad(deg) * 0.5
	s := math.Sin(half)
	return Quat{n[0] * s, n[1] * s, n[2] * s, math.Cos(half)}
}

// Mul returns a × b (b applied first).
func (a Quat) Mul(b Quat) Quat {
	ax, ay, az, aw := a[0], a[1], a[2], a[3]
	bx, by, bz, bw := b[0], b[1], b[2], b[3]
	return Quat{
		aw*bx + ax*bw + ay*bz - az*by,
		aw*by - ax*bz + ay*bw + az*bx,
		aw*bz + ax*by - ay*bx + az*bw,
		aw*bw - ax*bx - ay*by - az*bz,
	}
}

// Inverse returns the conjugate scaled by the inverse squared norm.
func (q Quat) Inverse() Quat {
	n := q.Dot(q)
	if n < 1e-12 {
		return QuatIdentity()
	}
	return Quat{-q[0] / n, -q[1] / n, -q[2] / n, q[3] / n}
}

func (a Quat) Dot(b Quat) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] + a[3]*b[3]
}

func (q Quat) Normalize() Quat {
	n := math.Sqrt(q.Dot(q))
	if n < 1e-12 {
		return QuatIdentity()
	}
	return Quat{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q[0], q[1], q[2]}
	w := q[3]
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(w)).Add(u.Cross(t))
}

// SameRotation reports whether a and b describe the same rotation within tol.
func SameRotation(a, b Quat, tol float64) bool {
	return math.Abs(a.Normalize().Dot(b.Normalize())) >= 1-tol
}
