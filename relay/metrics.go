package relay

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/FerroO2000/plogger/internal"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	tel *internal.Telemetry

	receivedMessages  atomic.Int64
	receivedBytes     atomic.Int64
	receiveErrors     atomic.Int64
	writtenBytes      atomic.Int64
	writeErrors       atomic.Int64
	forwardedMessages atomic.Int64
	droppedMessages   atomic.Int64
	forwardErrors     atomic.Int64

	relayTime *internal.Histogram
}

func newMetrics(tel *internal.Telemetry) *metrics {
	return &metrics{
		tel: tel,
	}
}

func (m *metrics) init() {
	m.tel.NewCounter("received_messages", func() int64 { return m.receivedMessages.Load() })
	m.tel.NewCounter("received_bytes", func() int64 { return m.receivedBytes.Load() })
	m.tel.NewCounter("receive_errors", func() int64 { return m.receiveErrors.Load() })
	m.tel.NewCounter("written_bytes", func() int64 { return m.writtenBytes.Load() })
	m.tel.NewCounter("write_errors", func() int64 { return m.writeErrors.Load() })
	m.tel.NewCounter("forwarded_messages", func() int64 { return m.forwardedMessages.Load() })
	m.tel.NewCounter("dropped_messages", func() int64 { return m.droppedMessages.Load() })
	m.tel.NewCounter("forward_errors", func() int64 { return m.forwardErrors.Load() })

	m.relayTime = m.tel.NewHistogram("message_relay_time", metric.WithUnit("us"))
}

func (m *metrics) addReceived(bytes int) {
	m.receivedMessages.Add(1)
	m.receivedBytes.Add(int64(bytes))
}

func (m *metrics) incrementReceiveErrors() {
	m.receiveErrors.Add(1)
}

func (m *metrics) addWrittenBytes(bytes int) {
	m.writtenBytes.Add(int64(bytes))
}

func (m *metrics) incrementWriteErrors() {
	m.writeErrors.Add(1)
}

func (m *metrics) incrementForwardedMessages() {
	m.forwardedMessages.Add(1)
}

func (m *metrics) incrementDroppedMessages() {
	m.droppedMessages.Add(1)
}

func (m *metrics) incrementForwardErrors() {
	m.forwardErrors.Add(1)
}

func (m *metrics) recordRelayTime(ctx context.Context, recvTime time.Time) {
	m.relayTime.Record(ctx, time.Since(recvTime).Microseconds())
}
