package bloom

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"bloomdisk.dev/bitmap"
)

func TestParamsForCapacity(t *testing.T) {
	totalBytes, k := ParamsForCapacity(1000, 0.01)
	require.EqualValues(t, 1211, totalBytes)
	require.Equal(t, 7, k)

	totalBytes, k = ParamsForCapacity(100, 0.1)
	require.EqualValues(t, 72, totalBytes)
	require.Equal(t, 4, k)
}

func TestForCapacityBasicMembership(t *testing.T) {
	f, err := ForCapacity("", 1000, 0.01)
	require.NoError(t, err)
	defer f.Close()

	require.False(t, f.Contains([]byte("test")))
	require.True(t, f.Add([]byte("test"), false))
	require.True(t, f.Contains([]byte("test")))
	require.EqualValues(t, 1, f.Len())
}

func TestFalsePositiveRateUnderCapacity(t *testing.T) {
	f, err := ForCapacity("", 1000, 0.01)
	require.NoError(t, err)
	defer f.Close()

	for i := 0; i < 1000; i++ {
		f.Add([]byte(fmt.Sprintf("member-%d", i)), false)
	}

	falsePositives := 0
	const probes = 10000
	for i := 0; i < probes; i++ {
		if f.Contains([]byte(fmt.Sprintf("nonmember-%d", i))) {
			falsePositives++
		}
	}

	rate := float64(falsePositives) / float64(probes)
	require.LessOrEqualf(t, rate, 0.02, "observed FPR %f exceeds 2x target", rate)
}

func TestHeaderPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.bm")

	totalBytes, _ := ParamsForCapacity(1000, 0.01)
	bm, err := bitmap.New(int64(totalBytes), path, false)
	require.NoError(t, err)

	f, err := New(bm, 7)
	require.NoError(t, err)
	require.True(t, f.Add([]byte("foo"), false))
	require.NoError(t, f.Flush())
	require.NoError(t, f.Close())

	bm2, err := bitmap.New(int64(totalBytes), path, false)
	require.NoError(t, err)
	defer bm2.Close(false)

	// Deliberately pass a different k; the stored k must win.
	f2, err := New(bm2, 1)
	require.NoError(t, err)
	require.Equal(t, 7, f2.K())
	require.True(t, f2.Contains([]byte("foo")))
	require.EqualValues(t, 1, f2.Len())
}

func TestNewRejectsBadArguments(t *testing.T) {
	bm, err := bitmap.New(int64(HeaderBytes), "", false)
	require.NoError(t, err)
	defer bm.Close(false)

	_, err = New(bm, 1)
	require.ErrorIs(t, err, ErrInvalidArgument)

	bm2, err := bitmap.New(1024, "", false)
	require.NoError(t, err)
	defer bm2.Close(false)

	_, err = New(bm2, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAddCheckFirstSkipsDuplicates(t *testing.T) {
	f, err := ForCapacity("", 1000, 0.01)
	require.NoError(t, err)
	defer f.Close()

	require.True(t, f.Add([]byte("dup"), true))
	require.False(t, f.Add([]byte("dup"), true))
	require.EqualValues(t, 1, f.Len())
}

func TestUnionAndIntersect(t *testing.T) {
	a, err := ForCapacity("", 1000, 0.01)
	require.NoError(t, err)
	defer a.Close()
	b, err := ForCapacity("", 1000, 0.01)
	require.NoError(t, err)
	defer b.Close()

	a.Add([]byte("only-a"), false)
	a.Add([]byte("shared"), false)
	b.Add([]byte("only-b"), false)
	b.Add([]byte("shared"), false)

	union, err := Union(a, b)
	require.NoError(t, err)
	defer union.Close()
	require.True(t, union.Contains([]byte("only-a")))
	require.True(t, union.Contains([]byte("only-b")))
	require.True(t, union.Contains([]byte("shared")))
	require.EqualValues(t, 0, union.Len())

	inter, err := Intersect(a, b)
	require.NoError(t, err)
	defer inter.Close()
	require.True(t, inter.Contains([]byte("shared")))
	require.False(t, inter.Contains([]byte("only-a")))
}

func TestUnionRejectsIncompatibleLayouts(t *testing.T) {
	a, err := ForCapacity("", 1000, 0.01)
	require.NoError(t, err)
	defer a.Close()
	b, err := ForCapacity("", 2000, 0.01)
	require.NoError(t, err)
	defer b.Close()

	_, err = Union(a, b)
	require.ErrorIs(t, err, ErrInvalidArgument)
}
