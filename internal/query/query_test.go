package query

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassista/go_datastore/internal/datastore"
	"github.com/bassista/go_datastore/internal/loader"
	"github.com/bassista/go_datastore/internal/profile"
)

var (
	alice = profile.Profile{ID: "1", UserName: "alice", Color: profile.Red, Tags: []string{"admin"}}
	bob   = profile.Profile{ID: "2", UserName: "bob", Color: profile.Blue}
)

func TestCompile_Match(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		alice      bool
		bob        bool
	}{
		{"field equality", `UserName == "alice"`, true, false},
		{"membership", `"admin" in Tags`, true, false},
		{"nested field", `Color.B > 200`, false, true},
		{"builtin", `len(Tags) == 0`, false, true},
		{"combined", `UserName startsWith "b" || ID == "1"`, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile[profile.Profile](tt.expression)
			require.NoError(t, err)
			assert.Equal(t, tt.alice, p.Match(alice))
			assert.Equal(t, tt.bob, p.Match(bob))
			assert.Equal(t, tt.expression, p.String())
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name       string
		expression string
	}{
		{"empty", ""},
		{"syntax", `UserName ==`},
		{"unknown field", `Nickname == "x"`},
		{"not boolean", `UserName`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile[profile.Profile](tt.expression)
			assert.Error(t, err)
			assert.Nil(t, p)
		})
	}

	_, err := Compile[profile.Profile]("")
	assert.ErrorIs(t, err, ErrEmptyExpression)
}

func TestMatch_RuntimeErrorIsNoMatch(t *testing.T) {
	p, err := Compile[profile.Profile](`Tags[3] == "x"`)
	require.NoError(t, err)

	assert.False(t, p.Match(bob))
}

func TestCompiler_Caches(t *testing.T) {
	c := NewCompiler[profile.Profile]()

	first, err := c.Compile(`UserName == "bob"`)
	require.NoError(t, err)
	second, err := c.Compile(`UserName == "bob"`)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())

	_, err = c.Compile(`UserName ==`)
	assert.Error(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestCompiler_Concurrent(t *testing.T) {
	c := NewCompiler[profile.Profile]()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Compile(`ID != ""`)
			assert.NoError(t, err)
			assert.True(t, p.Match(alice))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}

func TestSelect(t *testing.T) {
	store := datastore.New[string, profile.Wire, profile.Profile, profile.Stored](
		loader.Funcs[string, profile.Wire]{},
		profile.FromWire,
		datastore.WithInitialValues(map[string]profile.Profile{"1": alice, "2": bob}),
	)
	defer store.Close()
	c := NewCompiler[profile.Profile]()

	got, err := Select[string](c, store, `Color.R == 255 || Color.B == 255`)
	require.NoError(t, err)
	names := []string{}
	for _, r := range got {
		names = append(names, r.UserName)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"alice", "bob"}, names)

	got, err = Select[string](c, store, `"admin" in Tags`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].UserName)

	_, err = Select[string](c, store, `1 +`)
	assert.Error(t, err)
}
