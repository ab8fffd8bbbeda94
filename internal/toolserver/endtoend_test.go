//go:build !windows

package toolserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServerScript is a minimal tool server: it pushes a one-tool catalog on
// startup, then answers every request with a fixed result under the request's
// own id.
const echoServerScript = `
printf '{"tools":[{"name":"echo","description":"Echo test tool","inputSchema":{"type":"object"}}]}\n'
while read -r line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":"\([^"]*\)".*/\1/p')
  if [ -n "$id" ]; then
    printf '{"id":"%s","result":"echoed"}\n' "$id"
  fi
done
`

func TestStdioSessionAgainstRealProcess(t *testing.T) {
	p := NewProcess("sh", []string{"-c", echoServerScript}, nil)
	require.NoError(t, p.Start())

	sess := newStdioSession("echo", p, 5*time.Second, nil)
	defer sess.Close()

	require.NoError(t, sess.handshake(context.Background(), 5*time.Second))

	require.Eventually(t, func() bool {
		return len(sess.Tools()) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "echo", sess.Tools()[0].Name)

	ok, result := sess.Call(context.Background(), "echo", map[string]any{"text": "hi"})
	assert.True(t, ok)
	assert.Equal(t, "echoed", result)

	sess.Close()
	require.Eventually(t, func() bool { return !p.Running() },
		5*time.Second, 20*time.Millisecond)
}
