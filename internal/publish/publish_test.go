package publish_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/rpimonitor/internal/errors"
	"codeberg.org/mutker/rpimonitor/internal/logger"
	"codeberg.org/mutker/rpimonitor/internal/metric"
	"codeberg.org/mutker/rpimonitor/internal/publish"
	"github.com/charmbracelet/lipgloss"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v float64) metric.Source {
	return metric.SourceFunc(func(context.Context) (float64, error) { return v, nil })
}

func newRegistry(t *testing.T) *metric.Registry {
	t.Helper()

	cpu, err := metric.NewCategory("CPU",
		metric.New("Usage", "CPU Usage", "%", constant(42.5)),
		metric.New("Count", "CPU Count", "", constant(4), metric.WithPrecision(0)),
	)
	require.NoError(t, err)
	ram, err := metric.NewCategory("RAM",
		metric.New("Free", "RAM Free", "MiB", constant(512<<20), metric.WithDivisor(metric.MiB)),
	)
	require.NoError(t, err)
	disk, err := metric.NewCategory("DISK",
		metric.New("Percent Used", "Disk Percent Used", "%", constant(61.25)),
	)
	require.NoError(t, err)

	reg, err := metric.NewRegistry(cpu, ram, disk)
	require.NoError(t, err)
	require.NoError(t, reg.Each(func(_ *metric.Category, m *metric.Metric) error {
		return m.Refresh(context.Background())
	}))

	return reg
}

func TestTextPublisher(t *testing.T) {
	var buf bytes.Buffer
	reg := newRegistry(t)

	require.NoError(t, publish.NewText(&buf).Publish(context.Background(), reg))

	assert.Equal(t, reg.Text()+"\n", buf.String())
	assert.True(t, strings.HasPrefix(buf.String(), "CPU:\nCPU Usage             =    42.50 %  \n"))
}

func TestTextPublisherClearsScreen(t *testing.T) {
	var buf bytes.Buffer
	reg := newRegistry(t)

	p := publish.NewText(&buf, publish.WithClearScreen(), publish.WithHeaderStyle(lipgloss.NewStyle()))
	require.NoError(t, p.Publish(context.Background(), reg))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\x1b["), "expected an escape sequence, got %q", out)
	assert.Contains(t, out, "RAM Free              =   512.00 MiB")
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestTextPublisherWriteFailure(t *testing.T) {
	err := publish.NewText(brokenWriter{}).Publish(context.Background(), newRegistry(t))
	assert.True(t, errors.HasCode(err, errors.ErrPublishFailed))

	err = publish.NewJSON(brokenWriter{}).Publish(context.Background(), newRegistry(t))
	assert.True(t, errors.HasCode(err, errors.ErrPublishFailed))
}

func TestJSONPublisher(t *testing.T) {
	var buf bytes.Buffer
	reg := newRegistry(t)
	p := publish.NewJSON(&buf)

	require.NoError(t, p.Publish(context.Background(), reg))
	require.NoError(t, p.Publish(context.Background(), reg))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, lines[0], lines[1])
	assert.True(t, strings.HasPrefix(lines[0], `{"CPU":{"Usage":{"description":"CPU Usage","value":"42.50","units":"%"}`))

	var decoded map[string]map[string]metric.Export
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, "61.25", decoded["DISK"]["Percent Used"].Value)
}

type recorder struct {
	calls int
	err   error
}

func (r *recorder) Publish(context.Context, *metric.Registry) error {
	r.calls++
	return r.err
}

func TestMultiContinuesAfterFailure(t *testing.T) {
	first := &recorder{err: io.ErrClosedPipe}
	second := &recorder{}

	m := publish.NewMulti(logger.Nop(), first)
	m.Add(second)
	assert.Equal(t, 2, m.Len())

	err := m.Publish(context.Background(), newRegistry(t))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrPublishFailed))
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)

	first.err = nil
	assert.NoError(t, m.Publish(context.Background(), newRegistry(t)))
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func newToken(completed bool, err error) *fakeToken {
	tok := &fakeToken{done: make(chan struct{}), err: err}
	if completed {
		close(tok.done)
	}
	return tok
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

type fakeClient struct {
	connected bool
	failOn    string
	pending   bool
	messages  []message
}

func (c *fakeClient) IsConnectionOpen() bool { return c.connected }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.messages = append(c.messages, message{topic, qos, retained, fmt.Sprint(payload)})
	if topic == c.failOn {
		return newToken(true, io.ErrClosedPipe)
	}
	return newToken(!c.pending, nil)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "rpimonitor/CPU/Frequency Current", publish.Topic("rpimonitor", "CPU", "Frequency Current"))
}

func TestMQTTPublishesEveryMetric(t *testing.T) {
	client := &fakeClient{connected: true}
	p := publish.NewMQTT(client, "rpimonitor", logger.Nop())

	require.NoError(t, p.Publish(context.Background(), newRegistry(t)))

	assert.Equal(t, []message{
		{"rpimonitor/CPU/Usage", 0, false, "42.50 %"},
		{"rpimonitor/CPU/Count", 0, false, "4"},
		{"rpimonitor/RAM/Free", 0, false, "512.00 MiB"},
		{"rpimonitor/DISK/Percent Used", 0, false, "61.25 %"},
	}, client.messages)
}

func TestMQTTDoesNotWaitForDelivery(t *testing.T) {
	client := &fakeClient{connected: true, pending: true}
	p := publish.NewMQTT(client, "rpimonitor", logger.Nop())

	assert.NoError(t, p.Publish(context.Background(), newRegistry(t)))
	assert.Len(t, client.messages, 4)
}

func TestMQTTFailureContinues(t *testing.T) {
	var buf bytes.Buffer
	client := &fakeClient{connected: true, failOn: "rpimonitor/CPU/Count"}
	p := publish.NewMQTT(client, "rpimonitor", logger.New(&buf, "warning", true))

	err := p.Publish(context.Background(), newRegistry(t))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrPublishFailed))
	assert.Len(t, client.messages, 4)
	assert.Contains(t, buf.String(), "error_code=publish_failed")
}

func TestMQTTDisconnected(t *testing.T) {
	client := &fakeClient{connected: false}
	p := publish.NewMQTT(client, "rpimonitor", logger.Nop())

	err := p.Publish(context.Background(), newRegistry(t))
	require.Error(t, err)
	assert.Empty(t, client.messages)
}

func TestPrometheusPublisher(t *testing.T) {
	p := publish.NewPrometheus(logger.Nop())
	reg := newRegistry(t)

	require.NoError(t, p.Publish(context.Background(), reg))

	assert.InDelta(t, 42.5, testutil.ToFloat64(p.Gauges().WithLabelValues("CPU", "Usage", "%")), 1e-9)
	assert.InDelta(t, 512.0, testutil.ToFloat64(p.Gauges().WithLabelValues("RAM", "Free", "MiB")), 1e-9)
	assert.Equal(t, 4, testutil.CollectAndCount(p.Gauges()))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `rpimonitor_metric{category="DISK",metric="Percent Used",units="%"} 61.25`)
}

func TestPrometheusCloseWithoutServe(t *testing.T) {
	assert.NoError(t, publish.NewPrometheus(logger.Nop()).Close())
}
