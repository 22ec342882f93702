// Package loader defines how wire records enter the system and the default
// extension that turns them into device records.
package loader

import (
	"context"

	"github.com/bassista/go_datastore/internal/adapter"
)

// Loader fetches wire records from an external source (network, disk, ...).
// Both calls block until done or ctx is cancelled; failures are opaque.
//
// Errors reaching callers through Adapted (and so through the store) are
// *Error values wrapping the loader's own error exactly once. Compare with
// errors.Is or errors.As, never with ==; errors.Unwrap returns the original
// value.
type Loader[ID comparable, W any] interface {
	LoadAll(ctx context.Context) ([]W, error)
	LoadOne(ctx context.Context, id ID) (W, error)
}

// Adapted wraps a Loader and converts every result to device records.
// Failures come back as *Error, see Loader.
type Adapted[ID comparable, W, D any] struct {
	source   Loader[ID, W]
	fromWire adapter.Adapter[W, D]
}

// Adapt gives any wire loader a device-typed loading surface.
func Adapt[ID comparable, W, D any](source Loader[ID, W], fromWire adapter.Adapter[W, D]) *Adapted[ID, W, D] {
	return &Adapted[ID, W, D]{source: source, fromWire: fromWire}
}

// Source returns the wrapped loader.
func (a *Adapted[ID, W, D]) Source() Loader[ID, W] {
	return a.source
}

// LoadAll loads every wire record and adapts it.
func (a *Adapted[ID, W, D]) LoadAll(ctx context.Context) ([]D, error) {
	wires, err := a.source.LoadAll(ctx)
	if err != nil {
		return nil, wrap("load all", "", err)
	}
	return adapter.All(a.fromWire, wires), nil
}

// LoadOne loads and adapts a single wire record.
func (a *Adapted[ID, W, D]) LoadOne(ctx context.Context, id ID) (D, error) {
	wire, err := a.source.LoadOne(ctx, id)
	if err != nil {
		var zero D
		return zero, wrap("load one", id, err)
	}
	return a.fromWire.Adapt(wire), nil
}

// Funcs builds a Loader from two closures. A nil closure fails with
// ErrUnsupported.
type Funcs[ID comparable, W any] struct {
	All func(ctx context.Context) ([]W, error)
	One func(ctx context.Context, id ID) (W, error)
}

func (f Funcs[ID, W]) LoadAll(ctx context.Context) ([]W, error) {
	if f.All == nil {
		return nil, ErrUnsupported
	}
	return f.All(ctx)
}

func (f Funcs[ID, W]) LoadOne(ctx context.Context, id ID) (W, error) {
	if f.One == nil {
		var zero W
		return zero, ErrUnsupported
	}
	return f.One(ctx, id)
}
