package profile

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Stored is the persisted form of a Profile.
type Stored struct {
	ID       string   `json:"id" validate:"required"`
	UserName string   `json:"userName" validate:"required"`
	Color    string   `json:"color" validate:"required,hexcolor"`
	Kind     string   `json:"kind" validate:"required,oneof=weirdCaseExample inconsistentExample"`
	Tags     []string `json:"tags,omitempty"`
}

// NewStored projects a profile for persistence.
func NewStored(p Profile) Stored {
	return Stored{
		ID:       p.ID,
		UserName: p.UserName,
		Color:    p.Color.Hex(),
		Kind:     p.Kind.String(),
		Tags:     cloneTags(p.Tags),
	}
}

func (s Stored) RecordID() string { return s.ID }

// Device rebuilds the profile through NewFromStored.
func (s Stored) Device() Profile { return NewFromStored(s) }

// Validate checks the struct tags.
func (s Stored) Validate() error {
	return validate.Struct(s)
}
