package profile

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bassista/go_datastore/internal/adapter"
	"github.com/bassista/go_datastore/internal/record"
)

// Codec converts between Profile and Stored.
type Codec = record.Codec[string, Profile, Stored]

// FromWire is the wire adapter handed to loader.Adapt.
var FromWire = adapter.Func[Wire, Profile](NewFromWire)

// StoredToWire turns persisted profiles back into upstream records, so a
// repository can serve as a loader source.
var StoredToWire = adapter.Compose[Stored, Profile, Wire](adapter.Func[Stored, Profile](NewFromStored), adapter.Func[Profile, Wire](Profile.ToWire))

// Kind is the normalised profile category.
type Kind int

const (
	KindWeirdCase Kind = iota
	KindInconsistent
)

var kindNames = map[Kind]string{
	KindWeirdCase:    "weirdCaseExample",
	KindInconsistent: "inconsistentExample",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the names produced by String. Unknown names map to
// KindInconsistent so the conversion stays total.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindInconsistent
}

func kindFromWire(k WireKind) Kind {
	switch k {
	case WireKindWeirdCase:
		return KindWeirdCase
	default:
		return KindInconsistent
	}
}

func (k Kind) wire() WireKind {
	if k == KindWeirdCase {
		return WireKindWeirdCase
	}
	return WireKindInconsistent
}

// Color is an 8-bit RGB color.
type Color struct {
	R, G, B uint8
}

var (
	Red   = Color{R: 255}
	Green = Color{G: 255}
	Blue  = Color{B: 255}
	Clear = Color{}
)

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHex parses #rrggbb.
func ParseHex(s string) (Color, bool) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return Color{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, false
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
}

// Profile is the device record held in the store.
type Profile struct {
	ID       string
	UserName string
	Color    Color
	Kind     Kind
	Tags     []string
}

// NewFromWire adapts an upstream record.
func NewFromWire(w Wire) Profile {
	return Profile{
		ID:       w.ID,
		UserName: w.UserName,
		Color: Color{
			R: channel(w.Color.Red),
			G: channel(w.Color.Green),
			B: channel(w.Color.Blue),
		},
		Kind: kindFromWire(w.Kind),
		Tags: cloneTags(w.Tags),
	}
}

// NewFromStored rebuilds a profile from its persisted form. An unparsable
// color decodes to Clear.
func NewFromStored(s Stored) Profile {
	color, _ := ParseHex(s.Color)
	return Profile{
		ID:       s.ID,
		UserName: s.UserName,
		Color:    color,
		Kind:     ParseKind(s.Kind),
		Tags:     cloneTags(s.Tags),
	}
}

func (p Profile) RecordID() string { return p.ID }

// ToWire renders the profile the way the upstream sends it. NewFromWire
// inverts it exactly.
func (p Profile) ToWire() Wire {
	return Wire{
		ID:       p.ID,
		UserName: p.UserName,
		Color: WireColor{
			Red:   float64(p.Color.R) / 255,
			Green: float64(p.Color.G) / 255,
			Blue:  float64(p.Color.B) / 255,
		},
		Kind: p.Kind.wire(),
		Tags: cloneTags(p.Tags),
	}
}

func (p Profile) Stored() Stored { return NewStored(p) }

func (p Profile) Clone() Profile {
	c := p
	c.Tags = cloneTags(p.Tags)
	return c
}

func cloneTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	return append([]string(nil), tags...)
}
