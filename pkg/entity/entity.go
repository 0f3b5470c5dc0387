package entity

import (
	"github.com/JustZerooo/CounterStrikeSharp/pkg/memory"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/schema"
	"github.com/JustZerooo/CounterStrikeSharp/pkg/vfunc"
)

// EntityInstance is the root of every networked entity (CEntityInstance).
type EntityInstance struct {
	Handle memory.Handle
	rt     *Runtime
}

// Instance wraps h as an EntityInstance.
func (rt *Runtime) Instance(h memory.Handle) EntityInstance {
	return EntityInstance{Handle: h, rt: rt}
}

// IsValid reports whether the view points at an object.
func (e EntityInstance) IsValid() bool { return !e.Handle.IsNull() }

// DesignerName returns the entity's class name, such as "weapon_knife",
// read through its identity. An entity without identity has no name.
func (e EntityInstance) DesignerName() (string, error) {
	identity, ok, err := schema.GetPointer(e.rt.Schema, e.Handle, "CEntityInstance", "m_pEntity")
	if err != nil || !ok {
		return "", err
	}
	return schema.GetString(e.rt.Schema, identity, "CEntityIdentity", "m_designerName")
}

// BaseEntity is a CBaseEntity view.
type BaseEntity struct {
	EntityInstance
}

// BaseEntity wraps h as a BaseEntity.
func (rt *Runtime) BaseEntity(h memory.Handle) BaseEntity {
	return BaseEntity{EntityInstance: rt.Instance(h)}
}

// AbsVelocity returns a view of the entity's velocity, embedded in the
// entity itself.
func (e BaseEntity) AbsVelocity() (Vector, error) {
	return schema.GetDeclaredClass(e.rt.Schema, e.Handle, "CBaseEntity", "m_vecAbsVelocity",
		func(h memory.Handle) Vector { return Vector{Handle: h} })
}

// NetworkTransmitComponent returns the entity's transmit component, if it
// has one.
func (e BaseEntity) NetworkTransmitComponent() (NetworkTransmitComponent, bool, error) {
	return schema.GetPointerAs(e.rt.Schema, e.Handle, "CBaseEntity", "m_NetworkTransmitComponent",
		func(h memory.Handle) NetworkTransmitComponent { return NetworkTransmitComponent{Handle: h} })
}

// LastNetworkChange returns a pointer aliasing the entity's last network
// change time.
func (e BaseEntity) LastNetworkChange() (*float32, error) {
	return schema.GetRef[float32](e.rt.Schema, e.Handle, "CBaseEntity", "m_lastNetworkChange")
}

// IsSteadyState returns the entity's eight steady-state flags.
func (e BaseEntity) IsSteadyState() (schema.FixedArray[byte], error) {
	return schema.GetFixedArray[byte](e.rt.Schema, e.Handle, "CBaseEntity", "m_isSteadyState", 8)
}

// BodyComponent returns the entity's body component, if it has one.
func (e BaseEntity) BodyComponent() (BodyComponent, bool, error) {
	return schema.GetPointerAs(e.rt.Schema, e.Handle, "CBaseEntity", "m_CBodyComponent",
		func(h memory.Handle) BodyComponent { return BodyComponent{Handle: h, rt: e.rt} })
}

// AbsOrigin returns the entity's position through its scene node. ok is
// false when the entity has no body or scene node.
func (e BaseEntity) AbsOrigin() (Vector, bool, error) {
	node, ok, err := e.sceneNode()
	if err != nil || !ok {
		return Vector{}, false, err
	}
	v, err := node.AbsOrigin()
	return v, err == nil, err
}

// AbsRotation returns the entity's rotation through its scene node.
func (e BaseEntity) AbsRotation() (QAngle, bool, error) {
	node, ok, err := e.sceneNode()
	if err != nil || !ok {
		return QAngle{}, false, err
	}
	a, err := node.AbsRotation()
	return a, err == nil, err
}

func (e BaseEntity) sceneNode() (SceneNode, bool, error) {
	body, ok, err := e.BodyComponent()
	if err != nil || !ok {
		return SceneNode{}, false, err
	}
	return body.SceneNode()
}

var teleportSig = vfunc.Sig(vfunc.Void, vfunc.Pointer, vfunc.Pointer, vfunc.Pointer)

// Teleport moves the entity. Any of the three views may be zero to leave
// that property unchanged.
func (e BaseEntity) Teleport(position Vector, angles QAngle, velocity Vector) error {
	fn, err := e.rt.member("CBaseEntity_Teleport", e.Handle, teleportSig)
	if err != nil {
		return err
	}
	_, err = fn.Call(position.Handle, angles.Handle, velocity.Handle)
	return err
}

// NetworkTransmitComponent is a CNetworkTransmitComponent view.
type NetworkTransmitComponent struct {
	Handle memory.Handle
}

// BodyComponent is a CBodyComponent view.
type BodyComponent struct {
	Handle memory.Handle
	rt     *Runtime
}

// SceneNode returns the component's scene node, if any.
func (b BodyComponent) SceneNode() (SceneNode, bool, error) {
	return schema.GetPointerAs(b.rt.Schema, b.Handle, "CBodyComponent", "m_pSceneNode",
		func(h memory.Handle) SceneNode { return SceneNode{Handle: h, rt: b.rt} })
}

// SceneNode is a CGameSceneNode view.
type SceneNode struct {
	Handle memory.Handle
	rt     *Runtime
}

// AbsOrigin returns a view of the node's absolute position.
func (n SceneNode) AbsOrigin() (Vector, error) {
	return schema.GetDeclaredClass(n.rt.Schema, n.Handle, "CGameSceneNode", "m_vecAbsOrigin",
		func(h memory.Handle) Vector { return Vector{Handle: h} })
}

// AbsRotation returns a view of the node's absolute rotation.
func (n SceneNode) AbsRotation() (QAngle, error) {
	return schema.GetDeclaredClass(n.rt.Schema, n.Handle, "CGameSceneNode", "m_angAbsRotation",
		func(h memory.Handle) QAngle { return QAngle{Handle: h} })
}
