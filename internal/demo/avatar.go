// Package demo is a small deterministic kinematic simulation used by the
// binaries and tests: one avatar per player moving on the XZ plane.
package demo

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"netcode-csp/internal/input"
	"netcode-csp/internal/predict"
	"netcode-csp/internal/scene"
)

const (
	TypeMotion = "motion"

	AttrPosition = "position"
	AttrYaw      = "yaw"
	AttrSpeed    = "speed"

	VarOwner = "owner"

	// DefaultSpeed is in units per second.
	DefaultSpeed = 4.0
)

// RegisterComponents installs the motion component factory.
func RegisterComponents(r *scene.Registry) {
	r.Register(TypeMotion, func(c *scene.Component) {
		c.Attrs.Define(AttrSpeed, scene.ModeNet, scene.Float(DefaultSpeed))
	})
}

// SpawnAvatar creates an avatar owned by owner at the origin.
func SpawnAvatar(sc *scene.Scene, owner string, mode scene.IDMode) *scene.Entity {
	e := sc.CreateEntity(mode)
	e.Attrs.Define(AttrPosition, scene.ModeNet, scene.Vec3(mgl64.Vec3{}))
	e.Attrs.Define(AttrYaw, scene.ModeNet, scene.Float(0))
	e.Vars[VarOwner] = scene.String(owner)
	motion := e.CreateComponent(TypeMotion, mode)
	motion.Attrs.Define(AttrSpeed, scene.ModeNet, scene.Float(DefaultSpeed))
	return e
}

// FindAvatar returns the avatar owned by owner, nil when there is none.
func FindAvatar(sc *scene.Scene, owner string) *scene.Entity {
	for _, e := range sc.Entities() {
		if v, ok := e.Vars[VarOwner]; ok && v.AsString() == owner {
			return e
		}
	}
	return nil
}

// Move integrates one command. Yaw is absolute; the movement buttons push
// along the facing direction and its right-hand perpendicular.
func Move(e *scene.Entity, cmd input.Command, timestep time.Duration) {
	yaw := float64(cmd.Yaw)
	e.Attrs.Set(AttrYaw, scene.Float(yaw))

	var axis mgl64.Vec3
	if cmd.Pressed(input.ButtonForward) {
		axis[2]++
	}
	if cmd.Pressed(input.ButtonBack) {
		axis[2]--
	}
	if cmd.Pressed(input.ButtonRight) {
		axis[0]++
	}
	if cmd.Pressed(input.ButtonLeft) {
		axis[0]--
	}
	if axis.Len() == 0 {
		return
	}

	speed := DefaultSpeed
	if motion := e.ComponentOfType(TypeMotion); motion != nil {
		speed = motion.Attrs.Get(AttrSpeed).AsFloat()
	}
	step := mgl64.Rotate3DY(yaw).Mul3x1(axis.Normalize()).Mul(speed * timestep.Seconds())
	pos := e.Attrs.Get(AttrPosition).AsVec3()
	e.Attrs.Set(AttrPosition, scene.Vec3(pos.Add(step)))
}

// Position reads an avatar's position.
func Position(e *scene.Entity) mgl64.Vec3 {
	return e.Attrs.Get(AttrPosition).AsVec3()
}

// LocalAvatar predicts the client's own avatar.
type LocalAvatar struct {
	Scene *scene.Scene
	Owner string
}

func (a LocalAvatar) ApplyLocal(cmd input.Command, timestep time.Duration) {
	if e := FindAvatar(a.Scene, a.Owner); e != nil {
		Move(e, cmd, timestep)
	}
}

// Avatars applies each connection's input to the avatar it owns.
type Avatars struct {
	Scene *scene.Scene
}

func (a Avatars) ApplyConnection(cmd input.Command, timestep time.Duration, conn predict.Connection) {
	if e := FindAvatar(a.Scene, conn.ID()); e != nil {
		Move(e, cmd, timestep)
	}
}
