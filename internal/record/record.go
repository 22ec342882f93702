// Package record holds the contracts linking a device representation to its
// storable counterpart.
//
// A device type D and a storable type S form a closed pair: D projects to
// exactly one S through Stored, and S projects back to exactly one D through
// Device. The constraint is expressed in Codec's type parameter list, so an
// unpaired combination does not compile.
//
// Round-trip fidelity (D -> S -> D) is the responsibility of whoever designs
// the pair. It is not checked at compile time beyond type alignment; pairs are
// expected to carry a round-trip test.
package record

import (
	"fmt"

	"github.com/bassista/go_datastore/internal/adapter"
)

// Identifiable exposes the stable identifier shared by every representation
// of the same logical entity.
type Identifiable[ID comparable] interface {
	RecordID() ID
}

// Device is the canonical in-memory representation. Stored builds the
// storable counterpart from the receiver.
type Device[ID comparable, S any] interface {
	Identifiable[ID]
	Stored() S
}

// Storable is the persistable representation. Device rebuilds the device
// record; implementations call the device type's construct-from-stored
// function rather than duplicating the mapping.
type Storable[ID comparable, D any] interface {
	Identifiable[ID]
	Device() D
}

// Cloner is implemented by records holding reference fields that must not
// be shared between the cache and its callers.
type Cloner[T any] interface {
	Clone() T
}

// Clone deep-copies v when it implements Cloner and returns it unchanged
// otherwise.
func Clone[T any](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}
	return v
}

// Key renders an identifier as a storage key.
func Key[ID comparable](id ID) string {
	return fmt.Sprint(id)
}

// Codec converts between the two halves of a closed device/storable pair.
// The zero value is ready to use.
type Codec[ID comparable, D Device[ID, S], S Storable[ID, D]] struct{}

// ToStored projects a device record to its storable form.
func (Codec[ID, D, S]) ToStored(d D) S {
	return d.Stored()
}

// FromStored rebuilds a device record from its storable form.
func (Codec[ID, D, S]) FromStored(s S) D {
	return s.Device()
}

// ToStoredAll projects every record, preserving order.
func (c Codec[ID, D, S]) ToStoredAll(ds []D) []S {
	return adapter.All[D, S](c.StoredAdapter(), ds)
}

// FromStoredAll rebuilds every record, preserving order.
func (c Codec[ID, D, S]) FromStoredAll(ss []S) []D {
	return adapter.All[S, D](c.DeviceAdapter(), ss)
}

// RoundTrip passes d through its storable form and back.
func (c Codec[ID, D, S]) RoundTrip(d D) D {
	return c.FromStored(c.ToStored(d))
}

// StoredAdapter exposes ToStored as an adapter.
func (c Codec[ID, D, S]) StoredAdapter() adapter.Func[D, S] {
	return c.ToStored
}

// DeviceAdapter exposes FromStored as an adapter.
func (c Codec[ID, D, S]) DeviceAdapter() adapter.Func[S, D] {
	return c.FromStored
}
