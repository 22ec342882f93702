package record

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	ID    string
	Title string
	Tags  []string
}

type storedNote struct {
	ID    string
	Title string
	Tags  string
}

func newNoteFromStored(s storedNote) note {
	n := note{ID: s.ID, Title: s.Title}
	if s.Tags != "" {
		n.Tags = splitTags(s.Tags)
	}
	return n
}

func (n note) RecordID() string { return n.ID }

func (n note) Stored() storedNote {
	return storedNote{ID: n.ID, Title: n.Title, Tags: joinTags(n.Tags)}
}

func (n note) Clone() note {
	c := n
	if n.Tags != nil {
		c.Tags = append([]string(nil), n.Tags...)
	}
	return c
}

func (s storedNote) RecordID() string { return s.ID }

func (s storedNote) Device() note { return newNoteFromStored(s) }

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}

func splitTags(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func randomNote(r *rand.Rand) note {
	n := note{ID: uuid.NewString(), Title: uuid.NewString()[:r.Intn(8)+1]}
	for i := 0; i < r.Intn(4); i++ {
		n.Tags = append(n.Tags, uuid.NewString()[:r.Intn(6)+1])
	}
	return n
}

func TestCodec_RoundTripProperty(t *testing.T) {
	var codec Codec[string, note, storedNote]
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		n := randomNote(r)
		require.Equal(t, n, codec.RoundTrip(n), "round trip must be lossless for %+v", n)
	}
}

func TestCodec_IdentifiersAreStable(t *testing.T) {
	var codec Codec[string, note, storedNote]
	n := note{ID: "n-1", Title: "first"}

	stored := codec.ToStored(n)
	assert.Equal(t, n.RecordID(), stored.RecordID())
	assert.Equal(t, n.RecordID(), codec.FromStored(stored).RecordID())
}

func TestCodec_AllPreservesOrder(t *testing.T) {
	var codec Codec[string, note, storedNote]
	notes := []note{{ID: "b"}, {ID: "a"}, {ID: "c"}}

	stored := codec.ToStoredAll(notes)
	require.Len(t, stored, 3)
	assert.Equal(t, "b", stored[0].ID)
	assert.Equal(t, "a", stored[1].ID)
	assert.Equal(t, "c", stored[2].ID)

	assert.Equal(t, notes, codec.FromStoredAll(stored))
}

func TestCodec_Adapters(t *testing.T) {
	var codec Codec[string, note, storedNote]
	n := note{ID: "x", Title: "t", Tags: []string{"a", "b"}}

	s := codec.StoredAdapter().Adapt(n)
	assert.Equal(t, "a,b", s.Tags)
	assert.Equal(t, n, codec.DeviceAdapter().Adapt(s))
}

func TestClone(t *testing.T) {
	n := note{ID: "x", Tags: []string{"a"}}
	c := Clone(n)
	c.Tags[0] = "changed"
	assert.Equal(t, "a", n.Tags[0], "clone must not share the tags slice")

	plain := storedNote{ID: "y"}
	assert.Equal(t, plain, Clone(plain))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "abc", Key("abc"))
	assert.Equal(t, "42", Key(42))
}
