package entity

import "github.com/JustZerooo/CounterStrikeSharp/pkg/memory"

// Vector is a view of a native float[3] position or velocity.
type Vector struct {
	Handle memory.Handle
}

// Get returns the components.
func (v Vector) Get() (x, y, z float32, err error) {
	c, err := memory.Read[[3]float32](v.Handle, 0)
	return c[0], c[1], c[2], err
}

// Set writes the components.
func (v Vector) Set(x, y, z float32) error {
	return memory.Write(v.Handle, 0, [3]float32{x, y, z})
}

// Ref returns a pointer aliasing the components.
func (v Vector) Ref() (*[3]float32, error) {
	return memory.Ref[[3]float32](v.Handle, 0)
}

// QAngle is a view of a native pitch, yaw and roll triple in degrees.
type QAngle struct {
	Handle memory.Handle
}

// Get returns pitch, yaw and roll.
func (a QAngle) Get() (pitch, yaw, roll float32, err error) {
	c, err := memory.Read[[3]float32](a.Handle, 0)
	return c[0], c[1], c[2], err
}

// Set writes pitch, yaw and roll.
func (a QAngle) Set(pitch, yaw, roll float32) error {
	return memory.Write(a.Handle, 0, [3]float32{pitch, yaw, roll})
}
