package toolserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory stand-in for a spawned process. Requests
// written by the session surface on a channel; the test feeds responses back
// through the stdout pipe.
type fakeTransport struct {
	requests chan Request

	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	mu      sync.Mutex
	stopped bool
}

func newFakeTransport() *fakeTransport {
	or, ow := io.Pipe()
	er, ew := io.Pipe()
	return &fakeTransport{
		requests: make(chan Request, 16),
		stdoutR:  or,
		stdoutW:  ow,
		stderrR:  er,
		stderrW:  ew,
	}
}

func (f *fakeTransport) Write(data []byte) error {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	f.requests <- req
	return nil
}

func (f *fakeTransport) Stdout() io.Reader { return f.stdoutR }
func (f *fakeTransport) Stderr() io.Reader { return f.stderrR }

func (f *fakeTransport) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.stopped
}

func (f *fakeTransport) Stop(grace, kill time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return nil
	}
	f.stopped = true
	f.stdoutW.Close()
	f.stderrW.Close()
	return nil
}

// emit writes one protocol line to the session's stdout.
func (f *fakeTransport) emit(t *testing.T, line string) {
	t.Helper()
	if _, err := fmt.Fprintln(f.stdoutW, line); err != nil {
		t.Fatalf("emit: %v", err)
	}
}

// nextRequest waits for the session to send a request.
func (f *fakeTransport) nextRequest(t *testing.T) Request {
	t.Helper()
	select {
	case req := <-f.requests:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for request")
		return Request{}
	}
}

func TestStdioSessionCallRoundTrip(t *testing.T) {
	tr := newFakeTransport()
	sess := newStdioSession("echo", tr, 2*time.Second, nil)
	defer sess.Close()

	go func() {
		req := <-tr.requests
		fmt.Fprintf(tr.stdoutW, `{"id":%q,"result":"pong"}`+"\n", req.ID)
	}()

	ok, result := sess.Call(context.Background(), "ping", map[string]any{"n": 1})
	assert.True(t, ok)
	assert.Equal(t, "pong", result)
}

func TestStdioSessionConcurrentCallsCorrelateOutOfOrder(t *testing.T) {
	tr := newFakeTransport()
	sess := newStdioSession("echo", tr, 5*time.Second, nil)
	defer sess.Close()

	const callers = 5

	// Collect every request first, then answer them in reverse order so no
	// response arrives in submission order.
	go func() {
		reqs := make([]Request, 0, callers)
		for i := 0; i < callers; i++ {
			reqs = append(reqs, <-tr.requests)
		}
		for i := len(reqs) - 1; i >= 0; i-- {
			req := reqs[i]
			tag := req.Params["arguments"].(map[string]any)["tag"].(string)
			fmt.Fprintf(tr.stdoutW, `{"id":%q,"result":%q}`+"\n", req.ID, "reply-"+tag)
		}
	}()

	var wg sync.WaitGroup
	results := make([]string, callers)
	oks := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tag := fmt.Sprintf("caller-%d", i)
			oks[i], results[i] = sess.Call(context.Background(), "ping", map[string]any{"tag": tag})
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.True(t, oks[i], "caller %d failed", i)
		assert.Equal(t, fmt.Sprintf("reply-caller-%d", i), results[i])
	}
}

func TestStdioSessionErrorResponse(t *testing.T) {
	tr := newFakeTransport()
	sess := newStdioSession("echo", tr, 2*time.Second, nil)
	defer sess.Close()

	go func() {
		req := <-tr.requests
		fmt.Fprintf(tr.stdoutW, `{"id":%q,"error":"tool exploded"}`+"\n", req.ID)
	}()

	ok, result := sess.Call(context.Background(), "boom", nil)
	assert.False(t, ok)
	assert.Contains(t, result, "tool exploded")
}

func TestStdioSessionSkipsMalformedLines(t *testing.T) {
	tr := newFakeTransport()
	sess := newStdioSession("echo", tr, 2*time.Second, nil)
	defer sess.Close()

	go func() {
		req := <-tr.requests
		tr.emit(t, `not json at all`)
		tr.emit(t, `{"half":`)
		fmt.Fprintf(tr.stdoutW, `{"id":%q,"result":"survived"}`+"\n", req.ID)
	}()

	ok, result := sess.Call(context.Background(), "ping", nil)
	assert.True(t, ok)
	assert.Equal(t, "survived", result)
}

func TestStdioSessionDropsUnknownCorrelationID(t *testing.T) {
	tr := newFakeTransport()
	sess := newStdioSession("echo", tr, 2*time.Second, nil)
	defer sess.Close()

	go func() {
		req := <-tr.requests
		tr.emit(t, `{"id":"nobody-asked","result":"stale"}`)
		fmt.Fprintf(tr.stdoutW, `{"id":%q,"result":"fresh"}`+"\n", req.ID)
	}()

	ok, result := sess.Call(context.Background(), "ping", nil)
	assert.True(t, ok)
	assert.Equal(t, "fresh", result)
}

func TestStdioSessionCatalogPush(t *testing.T) {
	tr := newFakeTransport()
	sess := newStdioSession("echo", tr, 2*time.Second, nil)
	defer sess.Close()

	tr.emit(t, `{"tools":[{"name":"read_file","description":"Read a file","inputSchema":{"type":"object"}}]}`)

	require.Eventually(t, func() bool {
		return len(sess.Tools()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "read_file", sess.Tools()[0].Name)
}

func TestStdioSessionCatalogPushReplacesWholesale(t *testing.T) {
	tr := newFakeTransport()
	sess := newStdioSession("echo", tr, 2*time.Second, nil)
	defer sess.Close()

	tr.emit(t, `{"tools":[{"name":"a"},{"name":"b"}]}`)
	require.Eventually(t, func() bool { return len(sess.Tools()) == 2 }, 2*time.Second, 10*time.Millisecond)

	tr.emit(t, `{"tools":[{"name":"c"}]}`)
	require.Eventually(t, func() bool { return len(sess.Tools()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "c", sess.Tools()[0].Name)
}

func TestStdioSessionCallTimesOut(t *testing.T) {
	tr := newFakeTransport()
	sess := newStdioSession("echo", tr, 100*time.Millisecond, nil)
	defer sess.Close()

	ok, result := sess.Call(context.Background(), "never-answers", nil)
	assert.False(t, ok)
	assert.Contains(t, result, "timed out")
}

func TestStdioSessionLateResponseAfterTimeoutIsDropped(t *testing.T) {
	tr := newFakeTransport()
	sess := newStdioSession("echo", tr, 100*time.Millisecond, nil)
	defer sess.Close()

	ok, _ := sess.Call(context.Background(), "slow", nil)
	assert.False(t, ok)

	// The slot is gone, so the late answer must not disturb a second call.
	late := tr.nextRequest(t)

	go func() {
		req := <-tr.requests
		fmt.Fprintf(tr.stdoutW, `{"id":%q,"result":"late"}`+"\n", late.ID)
		fmt.Fprintf(tr.stdoutW, `{"id":%q,"result":"on-time"}`+"\n", req.ID)
	}()

	sess.callTimeout = 2 * time.Second
	ok, result := sess.Call(context.Background(), "fast", nil)
	assert.True(t, ok)
	assert.Equal(t, "on-time", result)
}

func TestStdioSessionCloseCancelsPending(t *testing.T) {
	tr := newFakeTransport()
	sess := newStdioSession("echo", tr, 10*time.Second, nil)

	done := make(chan struct{})
	var ok bool
	var result string
	go func() {
		ok, result = sess.Call(context.Background(), "hang", nil)
		close(done)
	}()

	tr.nextRequest(t)
	sess.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pending call not released by Close")
	}
	assert.False(t, ok)
	assert.Contains(t, result, "session closed")
}

func TestStdioSessionExitCallback(t *testing.T) {
	tr := newFakeTransport()

	exited := make(chan struct{})
	sess := newStdioSession("echo", tr, time.Second, func() { close(exited) })
	defer sess.Close()

	tr.stdoutW.Close()

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("exit callback not invoked on stdout close")
	}
}

func TestStdioSessionStructuredResultRendersAsJSON(t *testing.T) {
	tr := newFakeTransport()
	sess := newStdioSession("echo", tr, 2*time.Second, nil)
	defer sess.Close()

	go func() {
		req := <-tr.requests
		fmt.Fprintf(tr.stdoutW, `{"id":%q,"result":{"files":["a.txt"]}}`+"\n", req.ID)
	}()

	ok, result := sess.Call(context.Background(), "list", nil)
	assert.True(t, ok)
	assert.JSONEq(t, `{"files":["a.txt"]}`, result)
}
