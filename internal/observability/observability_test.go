package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Krajiyah/beetle-relay/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"gotest.tools/assert"
)

var vest = models.NewPeripheral("d0:39:72:bf:c6:47", "Beetle Vest", models.Vest)

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", false)
	assert.NilError(t, err)
	logger.Info().Msg("hidden")
	logger.Warn().Str("peripheral", vest.Name).Msg("shown")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, len(lines), 1)
	var entry map[string]interface{}
	assert.NilError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, entry["message"], "shown")
	assert.Equal(t, entry["peripheral"], "Beetle Vest")
	assert.Equal(t, logger.GetLevel(), zerolog.WarnLevel)
}

func TestLoggerBadLevel(t *testing.T) {
	_, err := newLogger(&bytes.Buffer{}, "loud", true)
	assert.ErrorContains(t, err, "Log level issue")
}

func TestMetricsListener(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	var l models.RelayListener = m
	l.OnStateChanged(vest, models.ConnectedHandshaked)
	l.OnFrameForwarded(vest, nil)
	l.OnFrameForwarded(vest, nil)
	l.OnFrameDropped(vest, "duplicate")
	l.OnInternalError(vest, nil)
	assert.Equal(t, testutil.ToFloat64(m.state.WithLabelValues(vest.Name)), 3.0)
	assert.Equal(t, testutil.ToFloat64(m.forwarded.WithLabelValues(vest.Name)), 2.0)
	assert.Equal(t, testutil.ToFloat64(m.dropped.WithLabelValues(vest.Name, "duplicate")), 1.0)
	assert.Equal(t, testutil.ToFloat64(m.errs.WithLabelValues(vest.Name)), 1.0)
}

type staticSnapshot []models.LinkStatus

func (s staticSnapshot) Snapshot() []models.LinkStatus { return s }

func TestLinkCollector(t *testing.T) {
	c := NewLinkCollector(staticSnapshot{{
		Peripheral: vest,
		State:      models.ConnectedHandshaked,
		Stats:      models.LinkStats{Accepted: 4, Acks: 2},
	}})
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	assert.Equal(t, testutil.CollectAndCount(c), 8)
	expected := `
# HELP beetle_relay_session_accepted_total Session accepted count.
# TYPE beetle_relay_session_accepted_total counter
beetle_relay_session_accepted_total{peripheral="Beetle Vest",role="vest"} 4
`
	assert.NilError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "beetle_relay_session_accepted_total"))
}
