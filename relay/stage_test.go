package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/FerroO2000/plogger/connector"
	"github.com/FerroO2000/plogger/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMsg struct {
	payload  []byte
	priority uint
	err      error
}

type fakeSource struct {
	msgs        []fakeMsg
	idx         int
	messageSize int
	onDrain     func()
	closed      bool
}

func (fs *fakeSource) Receive(ctx context.Context, buf []byte) (int, uint, error) {
	if fs.idx >= len(fs.msgs) {
		if fs.onDrain != nil {
			fs.onDrain()
		}
		<-ctx.Done()
		return 0, 0, ctx.Err()
	}

	msg := fs.msgs[fs.idx]
	fs.idx++

	if msg.err != nil {
		return 0, 0, msg.err
	}

	return copy(buf, msg.payload), msg.priority, nil
}

func (fs *fakeSource) MessageSize() int { return fs.messageSize }

func (fs *fakeSource) Close() error {
	fs.closed = true
	return nil
}

type fakeDestination struct {
	capacity    int
	messageSize int
	sendErr     error
	sent        []fakeMsg
	closed      bool
}

func (fd *fakeDestination) Send(payload []byte, priority uint) error {
	if fd.sendErr != nil {
		return fd.sendErr
	}

	if len(fd.sent) >= fd.capacity {
		return fmt.Errorf("%w: resource temporarily unavailable", connector.ErrWouldBlock)
	}

	fd.sent = append(fd.sent, fakeMsg{payload: bytes.Clone(payload), priority: priority})
	return nil
}

func (fd *fakeDestination) MessageSize() int { return fd.messageSize }

func (fd *fakeDestination) Close() error {
	fd.closed = true
	return nil
}

type shortWriter struct {
	writes int
}

func (sw *shortWriter) Write(p []byte) (int, error) {
	sw.writes++
	return len(p) / 2, errors.New("no space left on device")
}

type testEnv struct {
	stage *Stage
	src   *fakeSource
	dst   *fakeDestination
	logs  *bytes.Buffer
}

func newTestEnv(t *testing.T, cfg *Config, msgs ...fakeMsg) *testEnv {
	t.Helper()

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))

	src := &fakeSource{msgs: msgs, messageSize: cfg.MaxMessageSize}
	dst := &fakeDestination{capacity: 1 << 20, messageSize: cfg.MaxMessageSize}

	stage := NewStage(cfg)
	stage.tel = internal.NewTelemetryWithLogger("relay", "test", logger)
	stage.metrics = newMetrics(stage.tel)
	stage.attachInput = func(_ string) (connector.Source, error) { return src, nil }
	stage.createOutput = func(_ *connector.QueueOptions) (connector.Destination, error) { return dst, nil }

	return &testEnv{
		stage: stage,
		src:   src,
		dst:   dst,
		logs:  logs,
	}
}

// run initializes the stage and runs it until every scripted message is consumed.
func (te *testEnv) run(t *testing.T) {
	t.Helper()

	require.NoError(t, te.stage.Init(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	te.src.onDrain = cancel
	te.stage.Run(ctx)

	te.stage.Close()
}

func (te *testEnv) errorLogs() int {
	return bytes.Count(te.logs.Bytes(), []byte("level=ERROR"))
}

func Test_Stage_RelayToFile(t *testing.T) {
	assert := assert.New(t)

	cfg := NewConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "out.log")

	env := newTestEnv(t, cfg, fakeMsg{payload: []byte("PKT1"), priority: 5})
	env.run(t)

	content, err := os.ReadFile(cfg.OutputPath)
	assert.NoError(err)
	assert.Equal("PKT1", string(content))

	if assert.Len(env.dst.sent, 1) {
		assert.Equal([]byte("PKT1"), env.dst.sent[0].payload)
		assert.Equal(uint(5), env.dst.sent[0].priority)
	}

	assert.Zero(env.errorLogs())
	assert.True(env.src.closed)
	assert.True(env.dst.closed)
}

func Test_Stage_OutputFull(t *testing.T) {
	assert := assert.New(t)

	cfg := NewConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "out.log")

	env := newTestEnv(t, cfg, fakeMsg{payload: []byte("PKT2"), priority: 1})
	env.dst.capacity = 0
	env.run(t)

	content, err := os.ReadFile(cfg.OutputPath)
	assert.NoError(err)
	assert.Equal("PKT2", string(content))

	assert.Empty(env.dst.sent)
	assert.Zero(env.errorLogs())
	assert.Equal(int64(1), env.stage.metrics.droppedMessages.Load())
}

func Test_Stage_SinkUnwritable(t *testing.T) {
	assert := assert.New(t)

	cfg := NewConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "missing", "out.log")

	env := newTestEnv(t, cfg)

	attached := false
	env.stage.attachInput = func(_ string) (connector.Source, error) {
		attached = true
		return env.src, nil
	}

	err := env.stage.Init(t.Context())
	assert.ErrorIs(err, ErrSinkOpen)
	assert.ErrorIs(err, os.ErrNotExist)
	assert.False(attached)
}

func Test_Stage_AttachFailure(t *testing.T) {
	assert := assert.New(t)

	cfg := NewConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "out.log")

	env := newTestEnv(t, cfg)
	env.stage.attachInput = func(_ string) (connector.Source, error) {
		return nil, os.ErrNotExist
	}

	err := env.stage.Init(t.Context())
	assert.ErrorIs(err, ErrQueueAttach)
	assert.Contains(err.Error(), DefaultInputQueue)
	assert.Nil(env.stage.sink)
}

func Test_Stage_CreateFailure(t *testing.T) {
	assert := assert.New(t)

	cfg := NewConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "out.log")

	env := newTestEnv(t, cfg)
	env.stage.createOutput = func(_ *connector.QueueOptions) (connector.Destination, error) {
		return nil, os.ErrPermission
	}

	err := env.stage.Init(t.Context())
	assert.ErrorIs(err, ErrQueueCreate)
	assert.ErrorIs(err, os.ErrPermission)
	assert.True(env.src.closed)
}

func Test_Stage_CreateLimits(t *testing.T) {
	assert := assert.New(t)

	cfg := NewConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "out.log")
	cfg.MaxMessages = 20

	env := newTestEnv(t, cfg)
	env.stage.createOutput = func(_ *connector.QueueOptions) (connector.Destination, error) {
		return nil, syscall.EINVAL
	}

	err := env.stage.Init(t.Context())
	assert.ErrorIs(err, ErrQueueCreate)
	assert.ErrorIs(err, syscall.EINVAL)
	assert.Contains(err.Error(), "fs.mqueue.msg_max")
	assert.Contains(err.Error(), "max_messages 20")
}

func Test_Stage_ManyMessages(t *testing.T) {
	assert := assert.New(t)

	cfg := NewConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "out.log")
	cfg.SinkMode = SinkModeTruncate

	rng := rand.New(rand.NewPCG(1, 2))

	msgCount := 1000
	msgs := make([]fakeMsg, 0, msgCount)
	expected := &bytes.Buffer{}

	for i := range msgCount {
		payload := make([]byte, 1+rng.IntN(cfg.MaxMessageSize))
		for j := range payload {
			payload[j] = byte(rng.UintN(256))
		}

		msgs = append(msgs, fakeMsg{payload: payload, priority: uint(i % 32)})
		expected.Write(payload)
	}

	env := newTestEnv(t, cfg, msgs...)
	env.run(t)

	content, err := os.ReadFile(cfg.OutputPath)
	assert.NoError(err)
	assert.Equal(expected.Bytes(), content)

	if assert.Len(env.dst.sent, msgCount) {
		for i, sent := range env.dst.sent {
			assert.Equal(msgs[i].payload, sent.payload)
			assert.Equal(msgs[i].priority, sent.priority)
		}
	}

	assert.Equal(int64(msgCount), env.stage.metrics.receivedMessages.Load())
	assert.Equal(int64(expected.Len()), env.stage.metrics.writtenBytes.Load())
}

func Test_Stage_ReceiveError(t *testing.T) {
	assert := assert.New(t)

	cfg := NewConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "out.log")

	env := newTestEnv(t, cfg,
		fakeMsg{err: errors.New("interrupted system call")},
		fakeMsg{payload: []byte("PKT3"), priority: 2},
	)
	env.run(t)

	content, err := os.ReadFile(cfg.OutputPath)
	assert.NoError(err)
	assert.Equal("PKT3", string(content))

	assert.Len(env.dst.sent, 1)
	assert.Equal(1, env.errorLogs())
	assert.Contains(env.logs.String(), ErrReceive.Error())
	assert.Equal(int64(1), env.stage.metrics.receiveErrors.Load())
}

func Test_Stage_PartialWrite(t *testing.T) {
	assert := assert.New(t)

	cfg := NewConfig()

	writer := &shortWriter{}
	env := newTestEnv(t, cfg,
		fakeMsg{payload: []byte("PKT4"), priority: 3},
		fakeMsg{payload: []byte("PKT5"), priority: 3},
	)
	env.stage.openSink = func(_ string, _ SinkMode) (*Sink, error) {
		return newSink("short", writer), nil
	}
	env.run(t)

	assert.Equal(2, writer.writes)
	assert.Len(env.dst.sent, 2)
	assert.Equal(2, env.errorLogs())
	assert.Contains(env.logs.String(), ErrPartialWrite.Error())
	assert.Equal(int64(2), env.stage.metrics.writeErrors.Load())
}

func Test_Stage_ForwardError(t *testing.T) {
	assert := assert.New(t)

	cfg := NewConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "out.log")

	env := newTestEnv(t, cfg,
		fakeMsg{payload: []byte("PKT6")},
		fakeMsg{payload: []byte("PKT7")},
	)
	env.dst.sendErr = errors.New("message too long")
	env.run(t)

	content, err := os.ReadFile(cfg.OutputPath)
	assert.NoError(err)
	assert.Equal("PKT6PKT7", string(content))

	assert.Equal(2, env.errorLogs())
	assert.Contains(env.logs.String(), ErrForward.Error())
	assert.Equal(int64(2), env.stage.metrics.forwardErrors.Load())
}

func Test_Stage_DiscardPriority(t *testing.T) {
	assert := assert.New(t)

	cfg := NewConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "out.log")
	cfg.PreservePriority = false

	env := newTestEnv(t, cfg, fakeMsg{payload: []byte("PKT8"), priority: 9})
	env.run(t)

	if assert.Len(env.dst.sent, 1) {
		assert.Equal(uint(0), env.dst.sent[0].priority)
	}
}

func Test_Stage_InputClosed(t *testing.T) {
	assert := assert.New(t)

	cfg := NewConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "out.log")

	env := newTestEnv(t, cfg, fakeMsg{err: connector.ErrClosed})
	require.NoError(t, env.stage.Init(t.Context()))

	// Returns without the context being cancelled
	env.stage.Run(t.Context())
	env.stage.Close()

	assert.Zero(env.errorLogs())
}

func Test_Stage_BufferSize(t *testing.T) {
	assert := assert.New(t)

	cfg := NewConfig()
	cfg.OutputPath = filepath.Join(t.TempDir(), "out.log")

	env := newTestEnv(t, cfg)
	env.src.messageSize = 600
	require.NoError(t, env.stage.Init(t.Context()))
	defer env.stage.Close()

	assert.Len(env.stage.buf, 600)
	assert.Contains(env.logs.String(), "input messages may exceed the output message size")
}

func Test_Stage_InvalidConfig(t *testing.T) {
	assert := assert.New(t)

	cfg := &Config{
		OutputPath: filepath.Join(t.TempDir(), "out.log"),
		SinkMode:   "rotate",
	}

	env := newTestEnv(t, cfg)
	require.NoError(t, env.stage.Init(t.Context()))
	defer env.stage.Close()

	assert.Equal(DefaultInputQueue, cfg.InputQueue)
	assert.Equal(DefaultOutputQueue, cfg.OutputQueue)
	assert.Equal(DefaultMaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(DefaultMaxMessages, cfg.MaxMessages)
	assert.Equal(DefaultSinkMode, cfg.SinkMode)
	assert.Len(env.stage.buf, DefaultMaxMessageSize)
}
