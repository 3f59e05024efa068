package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordGeneration(t *testing.T) {
	genBefore := testutil.ToFloat64(CouponsGenerated)
	collBefore := testutil.ToFloat64(GenerationCollisions)

	RecordGeneration("success", 500, 3, 1.5)

	assert.Equal(t, genBefore+500, testutil.ToFloat64(CouponsGenerated))
	assert.Equal(t, collBefore+3, testutil.ToFloat64(GenerationCollisions))
}

func TestRecordRedemption(t *testing.T) {
	before := testutil.ToFloat64(Redemptions.WithLabelValues("max_used"))

	RecordRedemption("max_used", 0.002)
	RecordRedemption("max_used", 0.003)

	assert.Equal(t, before+2, testutil.ToFloat64(Redemptions.WithLabelValues("max_used")))
}

func TestRecordExpired_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(CouponsExpired)

	RecordExpired(0)
	RecordExpired(4)

	assert.Equal(t, before+4, testutil.ToFloat64(CouponsExpired))
}
