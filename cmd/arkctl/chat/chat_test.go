package chat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/tjper/arkctl/cmd/arkctl/chat"
)

type fakeSource struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (f *fakeSource) GetChat(ctx context.Context, serverName, addr, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var resp string
	if f.calls < len(f.responses) {
		resp = f.responses[f.calls]
	}
	f.calls++
	return resp, nil
}

type fakeSink struct {
	mu    sync.Mutex
	lines []chat.Line
}

func (f *fakeSink) Publish(l chat.Line) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, l)
}

func (f *fakeSink) snapshot() []chat.Line {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chat.Line, len(f.lines))
	copy(out, f.lines)
	return out
}

func TestPollerPublishesNonEmptyLinesInOrder(t *testing.T) {
	source := &fakeSource{responses: []string{"", "hello\nworld", ""}}
	sink := &fakeSink{}
	poller := chat.New(zap.NewNop(), source, sink)

	poller.Start(context.Background(), chat.Target{ServerName: "C1-Isle"})
	defer poller.Stop("C1-Isle")

	assert.Eventually(t, func() bool {
		return len(sink.snapshot()) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	lines := sink.snapshot()
	assert.Equal(t, "hello", lines[0].Text)
	assert.Equal(t, "world", lines[1].Text)
}

func TestStopCancelsPolling(t *testing.T) {
	source := &fakeSource{}
	sink := &fakeSink{}
	poller := chat.New(zap.NewNop(), source, sink)

	poller.Start(context.Background(), chat.Target{ServerName: "C1-Isle"})
	poller.Stop("C1-Isle")

	time.Sleep(50 * time.Millisecond)
	callsAfterStop := source.calls
	time.Sleep(3 * time.Second)
	assert.Equal(t, callsAfterStop, source.calls)
}
