package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAlertsIngestedTotal(t *testing.T) {
	before := testutil.ToFloat64(AlertsIngestedTotal.WithLabelValues(OutcomeDuplicate))

	AlertsIngestedTotal.WithLabelValues(OutcomeDuplicate).Inc()

	assert.Equal(t, before+1, testutil.ToFloat64(AlertsIngestedTotal.WithLabelValues(OutcomeDuplicate)))
}

func TestCollectorsRegistered(t *testing.T) {
	EscalationsTotal.Add(0)
	assert.Equal(t, 1, testutil.CollectAndCount(EscalationsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(ParseDuration))
}
