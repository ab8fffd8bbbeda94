package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/Nohyunjin/omni-secretary/internal/llm"
	"github.com/Nohyunjin/omni-secretary/internal/logging"
	"github.com/Nohyunjin/omni-secretary/internal/metrics"
	"github.com/Nohyunjin/omni-secretary/internal/toolserver"
)

// DefaultSystemPrompt seeds every conversation that does not supply its own.
const DefaultSystemPrompt = "You are a helpful personal assistant. Use the available tools when they help answer the user's request, and answer directly when they do not."

const (
	defaultMaxIterations = 10
	defaultChunkSize     = 48
	defaultChunkDelay    = 20 * time.Millisecond

	// progressResultLimit bounds tool output shown in the stream; the full
	// result still goes into the conversation for the model.
	progressResultLimit = 200
)

// ToolBroker is the tool surface the loop drives. The registry implements it.
// Catalog order and Resolve order must agree so the model is only ever shown
// the descriptor of the server a call would actually reach.
type ToolBroker interface {
	Catalog() []toolserver.ServerCatalog
	Resolve(tool string) (string, bool)
	Execute(ctx context.Context, tool string, args map[string]any) (bool, string)
}

// Loop runs the iterative reason-and-act cycle: call the model, execute the
// tools it asks for, feed results back, repeat until the model answers in
// plain text or the iteration bound is hit.
type Loop struct {
	client        llm.Client
	broker        ToolBroker
	logger        logging.Logger
	systemPrompt  string
	maxIterations int
	chunkSize     int
	chunkDelay    time.Duration
}

type LoopOption func(*Loop)

func WithSystemPrompt(prompt string) LoopOption {
	return func(l *Loop) { l.systemPrompt = prompt }
}

func WithMaxIterations(n int) LoopOption {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithChunking tunes how final answers are sliced into stream chunks.
func WithChunking(size int, delay time.Duration) LoopOption {
	return func(l *Loop) {
		if size > 0 {
			l.chunkSize = size
		}
		l.chunkDelay = delay
	}
}

func WithLoopLogger(logger logging.Logger) LoopOption {
	return func(l *Loop) { l.logger = logger }
}

func NewLoop(client llm.Client, broker ToolBroker, opts ...LoopOption) *Loop {
	l := &Loop{
		client:        client,
		broker:        broker,
		logger:        logging.NewComponentLogger("AgentLoop"),
		systemPrompt:  DefaultSystemPrompt,
		maxIterations: defaultMaxIterations,
		chunkSize:     defaultChunkSize,
		chunkDelay:    defaultChunkDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run answers one user query over the emitter. The emitter always receives a
// terminal event, even on failure. The returned error mirrors the failure for
// callers that track it.
func (l *Loop) Run(ctx context.Context, history []llm.Message, query string, em *StreamEmitter) error {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: l.systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	tools := l.toolDefinitions()
	if len(tools) == 0 {
		l.logger.Debug("no tools available, answering with a single completion")
		return l.finalCall(ctx, messages, em)
	}

	for i := 0; i < l.maxIterations; i++ {
		resp, err := l.client.Complete(ctx, llm.CompletionRequest{Messages: messages, Tools: tools})
		if err != nil {
			metrics.ModelCalls.WithLabelValues(metrics.OutcomeError).Inc()
			l.logger.Error("model call failed at iteration %d: %v", i+1, err)
			em.Fail(err.Error())
			return err
		}
		metrics.ModelCalls.WithLabelValues(metrics.OutcomeOK).Inc()

		if len(resp.ToolCalls) == 0 {
			l.streamAnswer(ctx, resp.Content, em)
			em.Stop()
			return nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			messages = append(messages, l.dispatchTool(ctx, tc, em))
		}
	}

	// Iteration bound reached. One last call without tools forces a plain
	// answer from whatever context has accumulated.
	l.logger.Warn("iteration bound %d reached, forcing a final answer", l.maxIterations)
	return l.finalCall(ctx, messages, em)
}

// dispatchTool runs one tool call and returns the tool-result message for the
// conversation. Tool failures are reported to the model, never escalated.
func (l *Loop) dispatchTool(ctx context.Context, tc llm.ToolCall, em *StreamEmitter) llm.Message {
	name := tc.Function.Name
	args := l.parseArguments(name, tc.Function.Arguments)

	em.Content(fmt.Sprintf("\n[tool] %s\n", name))
	l.logger.Info("executing tool %s", name)

	server, _ := l.broker.Resolve(name)

	ok, result := l.broker.Execute(ctx, name, args)
	outcome := metrics.OutcomeOK
	if !ok {
		outcome = metrics.OutcomeError
	}
	metrics.ToolCalls.WithLabelValues(server, name, outcome).Inc()
	if !ok {
		l.logger.Warn("tool %s failed: %s", name, truncate(result, progressResultLimit))
		result = fmt.Sprintf("Tool %s failed: %s", name, result)
	}

	em.Content(truncate(result, progressResultLimit) + "\n")

	return llm.Message{
		Role:       llm.RoleTool,
		Content:    result,
		ToolCallID: tc.ID,
	}
}

// parseArguments decodes the model's argument JSON, repairing it when the
// model emits something almost-valid. Unrepairable input degrades to no
// arguments rather than aborting the call.
func (l *Loop) parseArguments(tool, raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err == nil {
		if err := json.Unmarshal([]byte(repaired), &args); err == nil {
			l.logger.Warn("repaired malformed arguments for tool %s", tool)
			return args
		}
	}

	l.logger.Warn("unparseable arguments for tool %s, calling with none: %s", tool, truncate(raw, 120))
	return map[string]any{}
}

// finalCall asks for a completion without tools and streams the answer.
func (l *Loop) finalCall(ctx context.Context, messages []llm.Message, em *StreamEmitter) error {
	resp, err := l.client.Complete(ctx, llm.CompletionRequest{Messages: messages})
	if err != nil {
		l.logger.Error("final model call failed: %v", err)
		em.Fail(err.Error())
		return err
	}
	l.streamAnswer(ctx, resp.Content, em)
	em.Stop()
	return nil
}

// streamAnswer slices the answer into paced chunks so consumers render it
// progressively.
func (l *Loop) streamAnswer(ctx context.Context, answer string, em *StreamEmitter) {
	runes := []rune(answer)
	for start := 0; start < len(runes); start += l.chunkSize {
		end := start + l.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		em.Content(string(runes[start:end]))

		if l.chunkDelay > 0 && end < len(runes) {
			select {
			case <-time.After(l.chunkDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

// toolDefinitions flattens every connected server's catalog into the model's
// tool list. Servers come in start order and the first occurrence of a name
// wins, so a duplicate advertised here is the one Execute dispatches to.
func (l *Loop) toolDefinitions() []llm.ToolDefinition {
	var defs []llm.ToolDefinition
	seen := make(map[string]bool)
	for _, sc := range l.broker.Catalog() {
		for _, t := range sc.Tools {
			if seen[t.Name] {
				continue
			}
			seen[t.Name] = true
			defs = append(defs, llm.NewToolDefinition(t.Name, t.Description, t.InputSchema))
		}
	}
	return defs
}

// truncate bounds on runes so a cut never splits a multi-byte character.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
