package toolserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Nohyunjin/omni-secretary/internal/logging"
)

// httpSession talks to a remote tool server over plain HTTP. Liveness is a
// status probe, execution is a single POST per call.
type httpSession struct {
	name    string
	baseURL string
	client  *http.Client
	logger  logging.Logger

	mu    sync.Mutex
	tools []Tool
}

func newHTTPSession(name, baseURL string, timeout time.Duration) *httpSession {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpSession{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logging.NewComponentLogger(fmt.Sprintf("ToolSession[%s]", name)),
	}
}

func (s *httpSession) Name() string { return s.name }

func (s *httpSession) Tools() []Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// probe checks the server's status endpoint. Only a 200 counts as live.
func (s *httpSession) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/status", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("status probe: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status probe: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// discover fetches the tool catalog. Remote servers are not required to
// expose one, so every failure degrades to an empty catalog.
func (s *httpSession) discover(ctx context.Context, _ time.Duration) []Tool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/tools", nil)
	if err != nil {
		return nil
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("catalog fetch failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Debug("catalog fetch returned status %d", resp.StatusCode)
		return nil
	}

	var payload struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		s.logger.Warn("catalog decode failed: %v", err)
		return nil
	}

	s.mu.Lock()
	s.tools = payload.Tools
	s.mu.Unlock()
	s.logger.Info("loaded %d tools", len(payload.Tools))
	return s.Tools()
}

func (s *httpSession) Call(ctx context.Context, tool string, args map[string]any) (bool, string) {
	body, err := json.Marshal(map[string]any{
		"tool": tool,
		"args": args,
	})
	if err != nil {
		return false, fmt.Sprintf("encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Sprintf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("tool call %q failed: %v", tool, err)
		return false, fmt.Sprintf("execute request: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Sprintf("read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("tool call %q returned status %d", tool, resp.StatusCode)
		return false, fmt.Sprintf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var payload struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return false, fmt.Sprintf("decode response: %v", err)
	}
	return true, ResultText(payload.Result)
}

// Close is a no-op: the remote process is not ours to terminate.
func (s *httpSession) Close() {}
