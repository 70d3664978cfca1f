package hls

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyframeExact_Boundaries(t *testing.T) {
	// H.264 remux: segments span exactly the supplied keyframe timestamps,
	// the final segment ends at total duration.
	p, err := KeyframeExact([]float64{0, 4.2, 9.8, 15.0}, 18.0)
	require.NoError(t, err)

	assert.Equal(t, PlanKeyframeExact, p.Kind)
	require.Equal(t, 4, p.SegmentCount())

	wantStarts := []float64{0, 4.2, 9.8, 15.0}
	wantDurations := []float64{4.2, 5.6, 5.2, 3.0}
	for i := 0; i < p.SegmentCount(); i++ {
		assert.InDelta(t, wantStarts[i], p.SegmentStart(i), 1e-9, "start of segment %d", i)
		assert.InDelta(t, wantDurations[i], p.SegmentDuration(i), 1e-9, "duration of segment %d", i)
	}
	assert.Equal(t, 6, p.TargetDuration())
}

func TestKeyframeExact_SynthesizesLeadingZero(t *testing.T) {
	p, err := KeyframeExact([]float64{2.5, 7.0}, 10.0)
	require.NoError(t, err)

	require.Equal(t, 3, p.SegmentCount())
	assert.Equal(t, 0.0, p.SegmentStart(0))
	assert.InDelta(t, 2.5, p.SegmentStart(1), 1e-9)
}

func TestKeyframeExact_DeduplicatesAndSorts(t *testing.T) {
	p, err := KeyframeExact([]float64{7.0, 2.5, 2.5, 7.0, 0}, 10.0)
	require.NoError(t, err)

	diff := cmp.Diff([]float64{2.5, 7.0}, p.Boundaries(), cmpopts.EquateApprox(0, 1e-9))
	assert.Empty(t, diff)
}

func TestKeyframeExact_DropsBoundaryAtEnd(t *testing.T) {
	// A keyframe at (or past) total duration would create a zero-length
	// segment; it must be dropped.
	p, err := KeyframeExact([]float64{0, 5.0, 10.0}, 10.0)
	require.NoError(t, err)
	assert.Equal(t, 2, p.SegmentCount())
}

func TestKeyframeExact_InvalidDuration(t *testing.T) {
	_, err := KeyframeExact([]float64{0, 5}, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = KeyframeExact([]float64{0, 5}, -1)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestVirtualFixed_SegmentCount(t *testing.T) {
	// MPEG-2 encode path: 125s at 10s per segment -> ceil(12.5) = 13.
	p, err := VirtualFixed(125.0, 10.0)
	require.NoError(t, err)

	assert.Equal(t, PlanVirtualFixed, p.Kind)
	assert.Equal(t, 13, p.SegmentCount())
	assert.InDelta(t, 10.0, p.SegmentDuration(0), 1e-9)
	assert.InDelta(t, 5.0, p.SegmentDuration(12), 1e-9, "final segment holds the remainder")
	assert.Equal(t, 10, p.TargetDuration())
}

func TestVirtualFixed_ExactMultiple(t *testing.T) {
	p, err := VirtualFixed(120.0, 10.0)
	require.NoError(t, err)
	assert.Equal(t, 12, p.SegmentCount())
	assert.InDelta(t, 10.0, p.SegmentDuration(11), 1e-9)
}

func TestVirtualFixed_InvalidDuration(t *testing.T) {
	_, err := VirtualFixed(0, 10)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestPlan_Contains(t *testing.T) {
	p, err := VirtualFixed(30, 10)
	require.NoError(t, err)

	assert.True(t, p.Contains(0))
	assert.True(t, p.Contains(2))
	assert.False(t, p.Contains(3))
	assert.False(t, p.Contains(-1))
}
