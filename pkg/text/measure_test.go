package text

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vireo/pkg/style"
)

func TestFixedMeasurerScalesWithFontSize(t *testing.T) {
	fm := FixedMeasurer{Advance: 8}
	cs := &style.Computed{FontSize: 16}

	m, err := fm.MeasureText("abcd", cs)
	require.NoError(t, err)
	assert.Equal(t, 32.0, m.Width)
	assert.InDelta(t, 16.0, m.Height(), 0.001)

	cs.FontSize = 32
	m, _ = fm.MeasureText("abcd", cs)
	assert.Equal(t, 64.0, m.Width)
}

func TestFontMeasurerMonotonicWidth(t *testing.T) {
	fm, err := NewFontMeasurer()
	require.NoError(t, err)
	cs := &style.Computed{FontSize: 16}

	short, err := fm.MeasureText("hi", cs)
	require.NoError(t, err)
	long, err := fm.MeasureText("hi there", cs)
	require.NoError(t, err)

	assert.Greater(t, long.Width, short.Width)
	assert.Greater(t, short.Ascent, 0.0)
	assert.Greater(t, short.Descent, 0.0)
}

func TestFontMeasurerCachesFaces(t *testing.T) {
	fm, err := NewFontMeasurer()
	require.NoError(t, err)
	cs := &style.Computed{FontSize: 16, Bold: true}
	f1 := fm.Face(cs)
	f2 := fm.Face(cs)
	assert.Equal(t, f1, f2)
}

type failingMeasurer struct{}

func (failingMeasurer) MeasureText(string, *style.Computed) (Metrics, error) {
	return Metrics{}, errors.New("port down")
}

func TestFallbackRecoversMeasurementFailure(t *testing.T) {
	m := WithFallback(failingMeasurer{})
	cs := &style.Computed{FontSize: 16}
	got, err := m.MeasureText("abc", cs)
	require.NoError(t, err, "fallback must not surface the port failure")
	assert.Equal(t, 24.0, got.Width)
}
