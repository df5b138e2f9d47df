package immutable

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	opticserr "github.com/auth-platform/libs/go/optics/errors"
)

func TestList_ZeroValueIsEmpty(t *testing.T) {
	var l List[string]
	assert.Equal(t, 0, l.Len())
	assert.True(t, l.IsEmpty())
	assert.Empty(t, l.Slice())
}

func TestList_FromSliceCopies(t *testing.T) {
	src := []string{"a", "b"}
	l := FromSlice(src)
	src[0] = "z"
	assert.Equal(t, "a", l.At(0))
}

func TestList_SetAtLeavesReceiverUntouched(t *testing.T) {
	l := Of("0", "1", "2")
	updated, err := l.SetAt(1, "11")
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1", "2"}, l.Slice())
	assert.Equal(t, []string{"0", "11", "2"}, updated.Slice())

	_, err = l.SetAt(3, "x")
	assert.ErrorIs(t, err, opticserr.ErrIndexOutOfRange)
}

func TestList_AddInsertRemove(t *testing.T) {
	l := Of(1, 2)
	added := l.Add(3)
	assert.Equal(t, []int{1, 2, 3}, added.Slice())
	assert.Equal(t, 2, l.Len())

	inserted, err := added.Insert(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, inserted.Slice())

	atEnd, err := added.Insert(3, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, atEnd.Slice())

	removed, err := inserted.RemoveAt(2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 3}, removed.Slice())
	assert.Equal(t, []int{0, 1, 2, 3}, inserted.Slice())

	_, err = l.Insert(5, 1)
	assert.ErrorIs(t, err, opticserr.ErrIndexOutOfRange)
	_, err = l.RemoveAt(-1)
	assert.ErrorIs(t, err, opticserr.ErrIndexOutOfRange)
}

func TestList_AddDoesNotAlias(t *testing.T) {
	base := Of(1, 2).Add(3)
	x := base.Add(4)
	y := base.Add(5)
	assert.Equal(t, 4, x.At(3))
	assert.Equal(t, 5, y.At(3))
}

func TestList_GetAndAll(t *testing.T) {
	l := Of("a", "b", "c")
	v, ok := l.Get(2)
	assert.True(t, ok)
	assert.Equal(t, "c", v)
	_, ok = l.Get(3)
	assert.False(t, ok)

	var seen []string
	for i, s := range l.All() {
		if i == 2 {
			break
		}
		seen = append(seen, s)
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestList_Map(t *testing.T) {
	l := Map(Of(1, 2, 3), func(i, v int) string {
		return string(rune('a' + i + v - 1))
	})
	assert.Equal(t, []string{"a", "c", "e"}, l.Slice())
}

func TestList_YAMLRoundTrip(t *testing.T) {
	type doc struct {
		Names List[string] `yaml:"names"`
	}
	out, err := yaml.Marshal(doc{Names: Of("x", "y")})
	require.NoError(t, err)
	assert.Equal(t, "names:\n    - x\n    - y\n", string(out))

	var back doc
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, []string{"x", "y"}, back.Names.Slice())
}

func TestList_JSON(t *testing.T) {
	out, err := json.Marshal(List[int]{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))

	var l List[int]
	require.NoError(t, json.Unmarshal([]byte("[3,4]"), &l))
	assert.Equal(t, []int{3, 4}, l.Slice())
}

func TestListSetAtChangesOnlyTarget(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("SetAt replaces exactly one element", prop.ForAll(
		func(items []int, idx int, v int) bool {
			if len(items) == 0 {
				return true
			}
			i := idx % len(items)
			l := FromSlice(items)
			updated, err := l.SetAt(i, v)
			if err != nil || updated.Len() != l.Len() {
				return false
			}
			for j := 0; j < l.Len(); j++ {
				if j == i {
					if updated.At(j) != v {
						return false
					}
				} else if updated.At(j) != l.At(j) {
					return false
				}
			}
			return l.At(i) == items[i]
		},
		gen.SliceOf(gen.Int()),
		gen.IntRange(0, 1000),
		gen.Int(),
	))

	properties.TestingRun(t)
}
