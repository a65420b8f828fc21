// ABOUTME: Spatial types for positional voices
// ABOUTME: Vectors, rotations, transforms and the listener head with two ears
package mixer

import "math"

// Vec3 is a position or direction in listener space
type Vec3 struct {
	X, Y, Z float32
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(k float32) Vec3 {
	return Vec3{a.X * k, a.Y * k, a.Z * k}
}
func (a Vec3) Dot(b Vec3) float32 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{a.Y*b.Z - a.Z*b.Y, a.Z*b.X - a.X*b.Z, a.X*b.Y - a.Y*b.X}
}

// Length returns the euclidean length
func (a Vec3) Length() float32 {
	return float32(math.Sqrt(float64(a.Dot(a))))
}

// Normalized returns a unit vector, or the zero vector for zero input
func (a Vec3) Normalized() Vec3 {
	l := a.Length()
	if l == 0 {
		return Vec3{}
	}
	return a.Scale(1 / l)
}

// Quat is a rotation quaternion. The zero value rotates nothing.
type Quat struct {
	X, Y, Z, W float32
}

// IdentityQuat returns the identity rotation
func IdentityQuat() Quat {
	return Quat{W: 1}
}

// AxisAngle builds a rotation of radians around axis
func AxisAngle(axis Vec3, radians float32) Quat {
	axis = axis.Normalized()
	s := float32(math.Sin(float64(radians) / 2))
	c := float32(math.Cos(float64(radians) / 2))
	return Quat{X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s, W: c}
}

// Rotate applies the rotation to v
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Transform is a position plus orientation
type Transform struct {
	Position Vec3
	Rotation Quat
}

// At returns an unrotated transform at pos
func At(pos Vec3) Transform {
	return Transform{Position: pos, Rotation: IdentityQuat()}
}

const (
	headRadius        = 0.09
	earAngleDegrees   = 90.0
	earMaxAngleDegree = 60.0
	volumeAtSide      = 0.43
	volumeBehind      = 0.43 / 1.122
	minEarDistance    = 0.1
)

type ear struct {
	pos    Vec3
	maxVec Vec3 // direction of best hearing
}

// listener is the head the 3D voices are rendered for. Ear 0 feeds the
// left channel, ear 1 the right.
type listener struct {
	loc  Transform
	ears [2]ear
}

func newListener() listener {
	l := listener{loc: At(Vec3{})}
	l.updateEars()
	return l
}

func (l *listener) set(loc Transform) {
	l.loc = loc
	l.updateEars()
}

func (l *listener) updateEars() {
	dir := Vec3{0, 0, headRadius}
	unit := Vec3{0, 0, 1}
	up := Vec3{0, 1, 0}
	for i := range l.ears {
		sign := float32(1 - i*2)
		rot := AxisAngle(up, sign*earAngleDegrees*math.Pi/180)
		rotMax := AxisAngle(up, sign*earMaxAngleDegree*math.Pi/180)
		l.ears[i].pos = l.loc.Position.Add(l.loc.Rotation.Rotate(rot.Rotate(dir)))
		l.ears[i].maxVec = l.loc.Rotation.Rotate(rotMax.Rotate(unit))
	}
}

// gain returns the volume multiplier of a source at pos for one ear
func (l *listener) gain(earIdx int, pos Vec3) float32 {
	e := &l.ears[earIdx]
	toSrc := pos.Sub(e.pos)
	dot := e.maxVec.Dot(toSrc.Normalized())

	var mul float32
	if dot > 0 {
		mul = volumeAtSide + dot*(1-volumeAtSide)
	} else {
		mul = volumeAtSide + dot*(volumeAtSide-volumeBehind)
	}

	return mul / max(toSrc.Length(), minEarDistance)
}
