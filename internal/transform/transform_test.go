package transform

import (
	"math/rand"
	"testing"

	"github.com/rivo/uniseg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/relayout/internal/profile"
	"github.com/kalambet/relayout/internal/storage"
)

type staticTables struct {
	forward, inverse map[string]string
}

func (s staticTables) Tables() (map[string]string, map[string]string) {
	return s.forward, s.inverse
}

func tablesFor(forward map[string]string) staticTables {
	inv := make(map[string]string, len(forward))
	for k, v := range forward {
		inv[v] = k
	}
	return staticTables{forward: forward, inverse: inv}
}

func TestTransform_ForwardAndInverse(t *testing.T) {
	tr := New(tablesFor(map[string]string{"й": "q", "Й": "Q"}))

	assert.Equal(t, "Qq", tr.Transform("Йй"))
	assert.Equal(t, "Йй", tr.Transform("Qq"))
}

func TestTransform_UnmappedPassThrough(t *testing.T) {
	tr := New(tablesFor(map[string]string{"й": "q"}))

	for _, s := range []string{"", "z", "1", " ", "👍", "é", "🇺🇦"} {
		assert.Equal(t, s, tr.Transform(s), "input %q", s)
	}
}

func TestTransform_ForwardWinsOverInverse(t *testing.T) {
	// "a" is both a forward key and an inverse key.
	tr := New(staticTables{
		forward: map[string]string{"a": "b"},
		inverse: map[string]string{"a": "c"},
	})
	assert.Equal(t, "b", tr.Transform("a"))
}

func TestTransform_NotAnInvolution(t *testing.T) {
	tr := New(tablesFor(map[string]string{"a": "b", "b": "c"}))

	once := tr.Transform("a")
	assert.Equal(t, "b", once)
	assert.Equal(t, "c", tr.Transform(once))
}

func TestTransform_GraphemeUnits(t *testing.T) {
	tr := New(tablesFor(map[string]string{"é": "x", "👨‍👩‍👧": "f"}))

	assert.Equal(t, "xf", tr.Transform("é👨‍👩‍👧"))
}

func TestTransform_MultiCharacterValues(t *testing.T) {
	tr := New(staticTables{forward: map[string]string{"ё": "yo"}, inverse: map[string]string{}})
	assert.Equal(t, "yoж", tr.Transform("ёж"))
}

func TestTransform_PreservesLengthForSingleCharacterProfiles(t *testing.T) {
	tr := New(tablesFor(profile.Builtins()[0].Mapping))

	inputs := []string{"ghbdtn", "Привет, мир!", "qwerty ЙЦУКЕН 123", "mixed Ёж `~"}
	for _, s := range inputs {
		out := tr.Transform(s)
		assert.Equal(t, uniseg.GraphemeClusterCount(s), uniseg.GraphemeClusterCount(out), "input %q -> %q", s, out)
	}
}

func TestTransform_BuiltinRussian(t *testing.T) {
	tr := New(tablesFor(profile.Builtins()[0].Mapping))

	assert.Equal(t, "привет", tr.Transform("ghbdtn"))
	assert.Equal(t, "ghbdtn", tr.Transform("привет"))
}

func TestDetectDominantSide(t *testing.T) {
	tr := New(tablesFor(profile.Builtins()[0].Mapping))

	assert.Equal(t, SideForward, tr.DetectDominantSide("привет"))
	assert.Equal(t, SideForward, tr.DetectDominantSide("ПРИВЕТ"))
	assert.Equal(t, SideReverse, tr.DetectDominantSide("hello"))
	assert.Equal(t, SideTie, tr.DetectDominantSide("123"))
	assert.Equal(t, SideTie, tr.DetectDominantSide("ab"+"фы"))
}

func TestDetectDominantSide_OrderIndependent(t *testing.T) {
	tr := New(tablesFor(profile.Builtins()[0].Mapping))
	rng := rand.New(rand.NewSource(1))

	for _, s := range []string{"hello мир", "ghbdtn", "абвгд xyz", "Щ q Й w"} {
		want := tr.DetectDominantSide(s)
		runes := []rune(s)
		for i := 0; i < 20; i++ {
			rng.Shuffle(len(runes), func(a, b int) { runes[a], runes[b] = runes[b], runes[a] })
			assert.Equal(t, want, tr.DetectDominantSide(string(runes)), "permutation %q of %q", string(runes), s)
		}
	}
}

func TestSideString(t *testing.T) {
	assert.Equal(t, "forward", SideForward.String())
	assert.Equal(t, "reverse", SideReverse.String())
	assert.Equal(t, "tie", SideTie.String())
}

func TestTransform_FollowsActiveProfile(t *testing.T) {
	store, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mgr := profile.NewManager(store)
	require.NoError(t, mgr.Load())

	tr := New(mgr)
	require.Equal(t, "q", tr.Transform("й"))

	p, err := mgr.Create("Swap", "")
	require.NoError(t, err)
	p.Mapping = map[string]string{"й": "z"}
	_, err = mgr.Update(p)
	require.NoError(t, err)

	require.NoError(t, mgr.SetActive(p.ID))
	assert.Equal(t, "z", tr.Transform("й"))
	assert.Equal(t, "й", tr.Transform("z"))
}
