package repository

import (
	"testing"

	"github.com/bassista/go_datastore/internal/profile"
)

func stored(id, name string) profile.Stored {
	return profile.Stored{ID: id, UserName: name, Color: "#ff0000", Kind: "weirdCaseExample"}
}

func TestDocument_ApplyDefaults(t *testing.T) {
	var doc Document[profile.Stored]
	doc.ApplyDefaults()
	if doc.Records == nil {
		t.Fatal("expected Records to be non-nil after ApplyDefaults")
	}

	doc = Document[profile.Stored]{Records: []profile.Stored{stored("1", "a")}}
	doc.ApplyDefaults()
	if len(doc.Records) != 1 {
		t.Errorf("ApplyDefaults must keep records, got %d", len(doc.Records))
	}
}

func TestAreDocumentsEqual(t *testing.T) {
	a := &Document[profile.Stored]{
		Metadata: Metadata{LastUpdate: 1},
		Records:  []profile.Stored{stored("1", "a"), stored("2", "b")},
	}

	tests := []struct {
		name string
		b    *Document[profile.Stored]
		want bool
	}{
		{"identical", &Document[profile.Stored]{Metadata: Metadata{LastUpdate: 1}, Records: []profile.Stored{stored("1", "a"), stored("2", "b")}}, true},
		{"metadata ignored", &Document[profile.Stored]{Metadata: Metadata{LastUpdate: 99}, Records: []profile.Stored{stored("1", "a"), stored("2", "b")}}, true},
		{"order ignored", &Document[profile.Stored]{Records: []profile.Stored{stored("2", "b"), stored("1", "a")}}, true},
		{"different value", &Document[profile.Stored]{Records: []profile.Stored{stored("1", "a"), stored("2", "c")}}, false},
		{"missing record", &Document[profile.Stored]{Records: []profile.Stored{stored("1", "a")}}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AreDocumentsEqual(a, tt.b); got != tt.want {
				t.Errorf("AreDocumentsEqual() = %v, want %v", got, tt.want)
			}
		})
	}

	if !AreDocumentsEqual[profile.Stored](nil, nil) {
		t.Error("two nil documents should be equal")
	}
}

func TestStoreError(t *testing.T) {
	err := storeErr("bolt", "save", errBoom)

	var se *StoreError
	if !asStoreError(err, &se) {
		t.Fatalf("expected *StoreError, got %T", err)
	}
	if se.Backend != "bolt" || se.Op != "save" {
		t.Errorf("unexpected fields: %+v", se)
	}
	if err.Error() != "bolt save: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if storeErr("bolt", "save", nil) != nil {
		t.Error("nil error must stay nil")
	}
	if again := storeErr("json", "load", err); again != err {
		t.Error("StoreError must not be wrapped twice")
	}
}
