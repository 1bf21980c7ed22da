package detector_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Bridge-Point/anonamoose-sub001/internal/detector"
)

// countingInferencer fails every Classify call until healed and counts
// how many times the sidecar was actually reached.
type countingInferencer struct {
	calls  int
	healed bool
}

func (c *countingInferencer) Warmup(context.Context, string) error { return nil }

func (c *countingInferencer) Classify(context.Context, string, string) ([]detector.TokenPrediction, error) {
	c.calls++
	if c.healed {
		return nil, nil
	}
	return nil, errors.New("sidecar down")
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := detector.NewBreaker(3, time.Minute)

	require.True(t, b.Allow())
	b.Failure()
	b.Failure()
	assert.True(t, b.Allow(), "two failures stay under the threshold")

	b.Failure()
	assert.False(t, b.Allow())
	assert.True(t, b.Open())
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := detector.NewBreaker(3, time.Minute)

	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	b.Failure()
	assert.True(t, b.Allow(), "failures after a success count from zero")

	b.Failure()
	assert.False(t, b.Allow())
	b.Success()
	assert.True(t, b.Allow(), "a success closes an open breaker")
}

func TestBreaker_CooldownAdmitsProbes(t *testing.T) {
	b := detector.NewBreaker(1, 20*time.Millisecond)

	b.Failure()
	require.False(t, b.Allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, b.Allow(), "an elapsed cooldown admits probe calls")
}

func TestNERDetector_ShortCircuitsWhenOpen(t *testing.T) {
	inf := &countingInferencer{}
	ner := detector.NewNERDetector(inf, detector.NewBreaker(3, time.Minute), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := ner.Detect(ctx, "Priya approved it", "m", 0.5)
		assert.ErrorIs(t, err, detector.ErrNERUnavailable)
	}
	require.Equal(t, 3, inf.calls)

	// Open: the next call must not reach the sidecar at all.
	_, err := ner.Detect(ctx, "Priya approved it", "m", 0.5)
	assert.ErrorIs(t, err, detector.ErrNERUnavailable)
	assert.Equal(t, 3, inf.calls)
}

func TestNERDetector_RecoversAfterCooldown(t *testing.T) {
	inf := &countingInferencer{}
	breaker := detector.NewBreaker(3, 20*time.Millisecond)
	ner := detector.NewNERDetector(inf, breaker, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := ner.Detect(ctx, "text", "m", 0.5)
		require.ErrorIs(t, err, detector.ErrNERUnavailable)
	}
	require.True(t, breaker.Open())

	time.Sleep(30 * time.Millisecond)
	inf.healed = true

	_, err := ner.Detect(ctx, "text", "m", 0.5)
	require.NoError(t, err, "a probe call after the cooldown goes through")
	assert.Equal(t, 4, inf.calls)
	assert.False(t, breaker.Open(), "the successful probe closes the breaker")
}
