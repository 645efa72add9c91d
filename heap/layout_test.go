package heap_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/f4os/kcore/heap"
	"github.com/stretchr/testify/require"
)

func TestParseLayout(t *testing.T) {
	layout, err := heap.ParseLayout([]byte(`{
		"board": "stm32f407",
		"kernel": {"base": "0x10000000", "end": "0x10010000"},
		"user": {"base": 536870912, "size": "131072"}
	}`))
	require.NoError(t, err)

	require.Equal(t, heap.Layout{
		Kernel: heap.Bounds{Base: 0x10000000, End: 0x10010000},
		User:   heap.Bounds{Base: 0x20000000, End: 0x20020000},
	}, layout)
	require.Equal(t, 0x10000, layout.Kernel.Size())
}

func TestParseLayoutRejectsOverlap(t *testing.T) {
	_, err := heap.ParseLayout([]byte(`{
		"kernel": {"base": "0x20000000", "end": "0x20010000"},
		"user": {"base": "0x2000f000", "end": "0x20020000"}
	}`))
	require.True(t, errors.Is(err, heap.ErrInvalidRegion))
}

func TestParseLayoutRejectsMissingRegion(t *testing.T) {
	_, err := heap.ParseLayout([]byte(`{"kernel": {"base": "0x10000000", "end": "0x10010000"}}`))
	require.True(t, errors.Is(err, heap.ErrInvalidRegion))
}

func TestParseLayoutRejectsBadAddresses(t *testing.T) {
	for _, doc := range []string{
		`{"kernel": {"base": "ten", "end": "0x10010000"}, "user": {"base": 0, "end": 16}}`,
		`{"kernel": {"base": -4, "end": "0x10010000"}, "user": {"base": 0, "end": 16}}`,
		`{"kernel": {"base": 1.5, "end": "0x10010000"}, "user": {"base": 0, "end": 16}}`,
		`{"kernel": {"base": true, "end": "0x10010000"}, "user": {"base": 0, "end": 16}}`,
		`{"kernel": {"base": "0x100000000", "end": "0x10010000"}, "user": {"base": 0, "end": 16}}`,
		`{"kernel": {"base": "0xfffffff0", "size": 64}, "user": {"base": 0, "end": 16}}`,
		`{"kernel": [1, 2]}`,
		`not json`,
	} {
		_, err := heap.ParseLayout([]byte(doc))
		require.Error(t, err, doc)
	}
}

func TestBoundsOverlap(t *testing.T) {
	a := heap.Bounds{Base: 0x100, End: 0x200}
	require.True(t, a.Overlaps(heap.Bounds{Base: 0x1ff, End: 0x300}))
	require.False(t, a.Overlaps(heap.Bounds{Base: 0x200, End: 0x300}))
	require.False(t, a.Overlaps(heap.Bounds{Base: 0x0, End: 0x100}))
	require.Equal(t, 0, heap.Bounds{Base: 0x200, End: 0x100}.Size())
}
