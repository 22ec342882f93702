// Package profile is the example record family served by the datastore
// binary: user profiles fetched from an upstream directory.
package profile

// WireColor is a color as the upstream sends it, channels in [0,1].
type WireColor struct {
	Red   float64 `json:"red" yaml:"red"`
	Green float64 `json:"green" yaml:"green"`
	Blue  float64 `json:"blue" yaml:"blue"`
}

// WireKind keeps the upstream's inconsistent enum spelling.
type WireKind string

const (
	WireKindWeirdCase    WireKind = "WeirdCaseExample"
	WireKindInconsistent WireKind = "inconsistent_example"
)

// Wire is a profile as received from a loader. It is discarded once adapted.
type Wire struct {
	ID       string    `json:"id" yaml:"id"`
	UserName string    `json:"user_name" yaml:"user_name"`
	Color    WireColor `json:"color" yaml:"color"`
	Kind     WireKind  `json:"enumValue" yaml:"enumValue"`
	Tags     []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
}

func (w Wire) RecordID() string { return w.ID }
