package kvtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarRoundTrip(t *testing.T) {
	tr := New()
	tr.Set("STORE", "/dev/shm")
	tr.SetInt("INTERVAL", 4)

	v, ok := tr.Value("STORE")
	require.True(t, ok)
	assert.Equal(t, "/dev/shm", v)

	n := -1
	require.NoError(t, tr.GetInt("INTERVAL", &n))
	assert.Equal(t, 4, n)
}

func TestDefaultsPreservedWhenMissing(t *testing.T) {
	tr := New()

	s := "fallback"
	assert.False(t, tr.GetStr("STORE", &s))
	assert.Equal(t, "fallback", s)

	n := 7
	require.NoError(t, tr.GetInt("INTERVAL", &n))
	assert.Equal(t, 7, n)
}

func TestGetIntParseError(t *testing.T) {
	tr := New()
	tr.Set("INTERVAL", "often")

	n := 1
	assert.Error(t, tr.GetInt("INTERVAL", &n))
	assert.Equal(t, 1, n)
}

func TestKeysSorted(t *testing.T) {
	tr := New()
	for _, k := range []string{"zeta", "alpha", "mid", "beta"} {
		tr.Subtree(k)
	}
	assert.Equal(t, []string{"alpha", "beta", "mid", "zeta"}, tr.Keys())
}

func TestUnset(t *testing.T) {
	tr := New()
	tr.Set("A", "1")
	tr.Set("B", "2")
	assert.Equal(t, 2, tr.Size())

	tr.Unset("A")
	assert.Equal(t, 1, tr.Size())

	tr.UnsetAll()
	assert.Equal(t, 0, tr.Size())
}

func TestFromYAML(t *testing.T) {
	data := []byte(`
CKPT:
  "0":
    TYPE: xor
    SET_SIZE: 4
    INTERVAL: 1
  "1":
    TYPE: partner
    INTERVAL: 6
`)
	tr, err := FromYAML(data)
	require.NoError(t, err)

	descs := tr.Get("CKPT")
	require.NotNil(t, descs)
	assert.Equal(t, []string{"0", "1"}, descs.Keys())

	v, ok := descs.Get("0").Value("TYPE")
	require.True(t, ok)
	assert.Equal(t, "xor", v)

	n := 0
	require.NoError(t, descs.Get("1").GetInt("INTERVAL", &n))
	assert.Equal(t, 6, n)
}

func TestFromYAMLRejectsSequences(t *testing.T) {
	_, err := FromYAML([]byte("CKPT:\n  - one\n  - two\n"))
	assert.Error(t, err)
}

func TestYAMLRoundTrip(t *testing.T) {
	tr := New()
	sub := tr.Subtree("CKPT").Subtree("0")
	sub.Set("TYPE", "XOR")
	sub.SetInt("INTERVAL", 2)

	data, err := tr.ToYAML()
	require.NoError(t, err)

	back, err := FromYAML(data)
	require.NoError(t, err)

	v, ok := back.Get("CKPT").Get("0").Value("TYPE")
	require.True(t, ok)
	assert.Equal(t, "XOR", v)
}
