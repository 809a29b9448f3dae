package posemath

import (
	"math"
	"testing"
)

func nearVec(a, b Vec3, tol float64) bool {
	return math.Abs(a[0]-b[0]) < tol && math.Abs(a[1]-b[1]) < tol && math.Abs(a[2]-b[2]) < tol
}

func mat3Mul(a, b Mat3) Mat3 {
	var m Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m[r*3+c] = a.At(r, 0)*b.At(0, c) + a.At(r, 1)*b.At(1, c) + a.At(r, 2)*b.At(2, c)
		}
	}
	return m
}

func mulVec3(m Mat3, v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

func rotX(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{1, 0, 0, 0, c, -s, 0, s, c}
}

func rotY(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{c, 0, s, 0, 1, 0, -s, 0, c}
}

func rotZ(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{c, -s, 0, s, c, 0, 0, 0, 1}
}

func quatToMat3(q Quat) Mat3 {
	x, y, z, w := q[0], q[1], q[2], q[3]
	return Mat3FromColumns(
		Vec3{1 - 2*(y*y+z*z), 2 * (x*y + w*z), 2 * (x*z - w*y)},
		Vec3{2 * (x*y - w*z), 1 - 2*(x*x+z*z), 2 * (y*z + w*x)},
		Vec3{2 * (x*z + w*y), 2 * (y*z - w*x), 1 - 2*(x*x+y*y)},
	)
}

func TestAngleAxisRotate(t *testing.T) {
	q := AngleAxis(90, Up)
	got := q.Rotate(Forward)
	if !nearVec(got, Vec3{1, 0, 0}, 1e-9) {
		t.Fatalf("unexpected rotation of forward: %v", got)
	}
	got = AngleAxis(90, Right).Rotate(Up)
	if !nearVec(got, Vec3{0, 0, 1}, 1e-9) {
		t.Fatalf("unexpected rotation of up: %v", got)
	}
}

func TestQuatMulMatchesMatrixProduct(t *testing.T) {
	a := AngleAxis(30, Vec3{1, 2, 3})
	b := AngleAxis(-70, Vec3{0, 1, -1})
	v := Vec3{0.3, -1.2, 2.5}

	viaQuat := a.Mul(b).Rotate(v)
	viaMat := mulVec3(mat3Mul(quatToMat3(a), quatToMat3(b)), v)
	if !nearVec(viaQuat, viaMat, 1e-9) {
		t.Fatalf("quat=%v mat=%v", viaQuat, viaMat)
	}
}

func TestInverseUndoesRotation(t *testing.T) {
	q := AngleAxis(123, Vec3{0.2, 1, 0.4})
	v := Vec3{1, 2, 3}
	got := q.Inverse().Rotate(q.Rotate(v))
	if !nearVec(got, v, 1e-9) {
		t.Fatalf("inverse mismatch: %v", got)
	}
	if !SameRotation(q.Mul(q.Inverse()), QuatIdentity(), 1e-12) {
		t.Fatalf("q*q^-1 is not identity")
	}
}

func TestAxisMatricesMatchAngleAxis(t *testing.T) {
	v := Vec3{0.5, -0.25, 2}
	for _, tc := range []struct {
		axis Vec3
		mat  func(float64) Mat3
	}{
		{Right, rotX},
		{Up, rotY},
		{Forward, rotZ},
	} {
		got := mulVec3(tc.mat(Deg2Rad(40)), v)
		want := AngleAxis(40, tc.axis).Rotate(v)
		if !nearVec(got, want, 1e-9) {
			t.Fatalf("axis %v: matrix=%v quat=%v", tc.axis, got, want)
		}
	}
}

func TestWrapDegrees(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		180:  -180,
		-180: -180,
		190:  -170,
		-190: 170,
		720:  0,
		359:  -1,
	}
	for in, want := range cases {
		if got := WrapDegrees(in); math.Abs(got-want) > 1e-9 {
			t.Fatalf("WrapDegrees(%v)=%v want %v", in, got, want)
		}
	}
}

func TestMat3FromColumnsLayout(t *testing.T) {
	m := Mat3FromColumns(Vec3{1, 2, 3}, Vec3{4, 5, 6}, Vec3{7, 8, 9})
	if m.At(0, 1) != 4 || m.At(2, 0) != 3 || m.At(1, 2) != 8 {
		t.Fatalf("unexpected column layout %v", m)
	}
	if !nearVec(mulVec3(quatToMat3(QuatIdentity()), Vec3{1, 2, 3}), Vec3{1, 2, 3}, 1e-12) {
		t.Fatalf("identity quaternion is not the identity matrix")
	}
}
