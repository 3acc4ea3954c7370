package dash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEWMA_FirstSampleIsEstimate(t *testing.T) {
	e := newEWMA(5)
	e.Sample(10)
	assert.Equal(t, 10.0, e.Estimate())
}

func TestEWMA_ConvergesTowardRepeatedSample(t *testing.T) {
	e := newEWMA(5)
	e.Sample(10)
	for i := 0; i < 50; i++ {
		e.Sample(20)
	}
	assert.InDelta(t, 20.0, e.Estimate(), 0.01)
}

func TestEWMA_HalfLifeApproximatelyHalvesGap(t *testing.T) {
	e := newEWMA(1)
	e.Sample(0)
	e.Sample(100)
	assert.InDelta(t, 50.0, e.Estimate(), 0.5)
}
