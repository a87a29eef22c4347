package telemetry

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/mailqueue"
)

var _ mailqueue.Observer = (*Metrics)(nil)

func TestObserveDispatch(t *testing.T) {
	m := New()

	m.ObserveDispatch("whoami", "ok", 5*time.Millisecond)
	m.ObserveDispatch("whoami", "ok", 5*time.Millisecond)
	m.ObserveDispatch("email.send", "already_in_progress", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("whoami", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("email.send", "already_in_progress")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestMailObserver(t *testing.T) {
	m := New()

	m.Sent("tx")
	m.Failed("")
	m.Failed("tx")
	m.Length(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.mailSent.WithLabelValues("tx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mailFailed.WithLabelValues("")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueLen))
}

func TestObserveReload(t *testing.T) {
	m := New()
	m.ObserveReload(nil)
	m.ObserveReload(errors.New("bad config"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.reloads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reloads.WithLabelValues("error")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveDispatch("whoami", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/_/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `opsgate_operations_total{operation="whoami",outcome="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
