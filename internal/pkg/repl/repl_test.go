package repl

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/airenas/supaquery/internal/pkg/api"
	"github.com/airenas/supaquery/internal/pkg/batch"
	"github.com/airenas/supaquery/internal/pkg/intent"
	"github.com/airenas/supaquery/internal/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRouter struct {
	mock.Mock
	block chan struct{}
}

func (m *mockRouter) Classify(ctx context.Context, q string) *intent.Intent {
	args := m.Called(ctx, q)
	return args.Get(0).(*intent.Intent)
}

func (m *mockRouter) HandleIntent(ctx context.Context, q string, in *intent.Intent, pf func(batch.Progress)) *api.Response {
	args := m.Called(ctx, q, in, pf)
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return &api.Response{Intent: string(in.Kind), Error: ctx.Err().Error()}
		}
	}
	return args.Get(0).(*api.Response)
}

// syncBuffer is safe for concurrent writes and reads
type syncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}

func newTestREPL(t *testing.T, input string) (*REPL, *mockRouter, *syncBuffer) {
	t.Helper()
	rm := &mockRouter{}
	rm.On("Classify", mock.Anything, mock.Anything).Return(&intent.Intent{Kind: intent.DatabaseQuery})
	rm.On("HandleIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&api.Response{Success: true, Intent: "database_query", OperationType: "select", Table: "employees",
			Data: []map[string]interface{}{{"id": 1, "name": "Jonas"}}})
	out := &syncBuffer{}
	r, err := New(rm, strings.NewReader(input), out)
	require.Nil(t, err)
	return r.NoColor().Sequential(), rm, out
}

func TestNew_Fail(t *testing.T) {
	_, err := New(nil, strings.NewReader(""), io.Discard)
	assert.NotNil(t, err)
	_, err = New(&mockRouter{}, nil, io.Discard)
	assert.NotNil(t, err)
	_, err = New(&mockRouter{}, strings.NewReader(""), nil)
	assert.NotNil(t, err)
}

func TestRun(t *testing.T) {
	r, rm, out := newTestREPL(t, "show employees\n")

	err := r.Run(test.Ctx(t))

	require.Nil(t, err)
	rm.AssertCalled(t, "Classify", mock.Anything, "show employees")
	assert.Contains(t, out.String(), "Welcome to supaquery")
	assert.Contains(t, out.String(), "Processing your request...")
	assert.Contains(t, out.String(), "Found 1 record:")
	assert.Contains(t, out.String(), "Jonas")
}

func TestRun_Exit(t *testing.T) {
	for _, cmd := range []string{"exit", "quit", "EXIT", " Quit "} {
		t.Run(cmd, func(t *testing.T) {
			r, rm, out := newTestREPL(t, cmd+"\nshow employees\n")

			err := r.Run(test.Ctx(t))

			require.Nil(t, err)
			assert.Contains(t, out.String(), "Goodbye!")
			rm.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
		})
	}
}

func TestRun_SkipsEmpty(t *testing.T) {
	r, rm, _ := newTestREPL(t, "\n   \n\t\nexit\n")

	err := r.Run(test.Ctx(t))

	require.Nil(t, err)
	rm.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
	assert.Empty(t, r.history.Items())
}

func TestRun_History(t *testing.T) {
	r, _, out := newTestREPL(t, "q1\nq2\nq3\nq4\nq5\nq6\nhistory\n")

	err := r.Run(test.Ctx(t))

	require.Nil(t, err)
	assert.Equal(t, []string{"q2", "q3", "q4", "q5", "q6"}, r.history.Items())
	assert.Contains(t, out.String(), "1. q2\n")
	assert.Contains(t, out.String(), "5. q6\n")
	assert.NotContains(t, out.String(), ". q1\n")
}

func TestRun_HistoryEmpty(t *testing.T) {
	r, _, out := newTestREPL(t, "history\n")

	err := r.Run(test.Ctx(t))

	require.Nil(t, err)
	assert.Contains(t, out.String(), "No queries yet.")
}

func TestRun_Busy(t *testing.T) {
	rm := &mockRouter{block: make(chan struct{})}
	rm.On("Classify", mock.Anything, mock.Anything).Return(&intent.Intent{Kind: intent.AudioProcessing})
	rm.On("HandleIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&api.Response{Success: true, Intent: "audio_processing", Message: "Processed audio files successfully."})
	pr, pw := io.Pipe()
	out := &syncBuffer{}
	r, err := New(rm, pr, out)
	require.Nil(t, err)
	r.NoColor()

	done := make(chan error, 1)
	go func() { done <- r.Run(test.Ctx(t)) }()

	_, _ = pw.Write([]byte("process audio\n"))
	require.Eventually(t, func() bool { return r.slot.Current() != nil }, time.Second*5, time.Millisecond*10)
	_, _ = pw.Write([]byte("show employees\n"))
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "Still processing") }, time.Second*5, time.Millisecond*10)

	close(rm.block)
	_ = pw.Close()
	require.Nil(t, <-done)
	assert.Contains(t, out.String(), "Processed audio files successfully.")
	rm.AssertNumberOfCalls(t, "Classify", 1)
}

func TestRun_Cancel(t *testing.T) {
	rm := &mockRouter{block: make(chan struct{})}
	rm.On("Classify", mock.Anything, mock.Anything).Return(&intent.Intent{Kind: intent.AudioProcessing})
	rm.On("HandleIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&api.Response{Success: true})
	pr, pw := io.Pipe()
	out := &syncBuffer{}
	r, err := New(rm, pr, out)
	require.Nil(t, err)
	r.NoColor()

	done := make(chan error, 1)
	go func() { done <- r.Run(test.Ctx(t)) }()

	_, _ = pw.Write([]byte("process audio\n"))
	require.Eventually(t, func() bool { return r.slot.Current() != nil }, time.Second*5, time.Millisecond*10)
	_, _ = pw.Write([]byte("cancel\n"))
	require.Eventually(t, func() bool { return r.slot.Current() == nil }, time.Second*5, time.Millisecond*10)
	_ = pw.Close()

	require.Nil(t, <-done)
	assert.Contains(t, out.String(), "Canceling current request...")
	assert.Contains(t, out.String(), "context canceled")
}

func TestRun_CancelNothing(t *testing.T) {
	r, _, out := newTestREPL(t, "cancel\n")

	err := r.Run(test.Ctx(t))

	require.Nil(t, err)
	assert.Contains(t, out.String(), "Nothing to cancel.")
}

func TestRun_Panic(t *testing.T) {
	rm := &mockRouter{}
	rm.On("Classify", mock.Anything, mock.Anything).Return(nil)
	out := &syncBuffer{}
	r, err := New(rm, strings.NewReader("olia\nq2\n"), out)
	require.Nil(t, err)
	r.NoColor().Sequential()

	err = r.Run(test.Ctx(t))

	require.Nil(t, err)
	assert.Contains(t, out.String(), "unexpected error")
	rm.AssertNumberOfCalls(t, "Classify", 2)
}

func TestRun_Progress(t *testing.T) {
	r, _, out := newTestREPL(t, "")
	r.progress(batch.Progress{Done: 2, Total: 4, ETA: 2500 * time.Millisecond})
	assert.Equal(t, "  2/4 done, ETA 3s\n", out.String())
}
