package glrender

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// PerspectiveMat4 returns a right-handed perspective projection with vertical field of
// view fovy in radians, mapping depth in [near, far] to clip space [-1, 1].
func PerspectiveMat4(fovy, aspect, near, far float32) ms3.Mat4 {
	f := 1 / math32.Tan(fovy/2)
	nf := 1 / (near - far)
	return ms3.NewMat4([]float32{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) * nf, 2 * far * near * nf,
		0, 0, -1, 0,
	})
}

// LookAtMat4 returns a right-handed view matrix placing the eye at eye looking at center.
func LookAtMat4(eye, center, up ms3.Vec) ms3.Mat4 {
	f := ms3.Unit(ms3.Sub(center, eye))
	s := ms3.Unit(ms3.Cross(f, up))
	u := ms3.Cross(s, f)
	return ms3.NewMat4([]float32{
		s.X, s.Y, s.Z, -ms3.Dot(s, eye),
		u.X, u.Y, u.Z, -ms3.Dot(u, eye),
		-f.X, -f.Y, -f.Z, ms3.Dot(f, eye),
		0, 0, 0, 1,
	})
}

// columnMajor returns m in the column-major order GL expects for matrix uniforms.
func columnMajor(m ms3.Mat4) [16]float32 {
	return m.Transpose().Array()
}
