package toolbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/soyeahso/parley/internal/logging"
	"github.com/soyeahso/parley/internal/metrics"
)

// DefaultTimeout bounds a single tool invocation.
const DefaultTimeout = 30 * time.Second

// Bridge executes function calls for one session. It parses argument
// text, stamps the session identity into the arguments, dispatches to
// the registered tool and reports latency.
type Bridge struct {
	registry *Registry
	userID   string
	timeout  time.Duration
	log      *logging.Logger
	metrics  *metrics.Metrics
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithMetrics records tool call counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// New creates a Bridge bound to one session identity.
func New(reg *Registry, userID string, log *logging.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		registry: reg,
		userID:   userID,
		timeout:  DefaultTimeout,
		log:      log,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute runs the named tool against rawArgs and returns its result
// envelope. It is a total function: malformed arguments, unknown tools,
// tool panics and backend failures all map to an envelope, never an
// error or panic. The session identity overwrites any user_id the model
// supplied.
func (b *Bridge) Execute(ctx context.Context, name, rawArgs string) Result {
	args := b.parseArguments(rawArgs)

	tool, ok := b.registry.Get(name)
	if !ok {
		b.log.Warn().Str("tool", name).Msg("unknown tool requested")
		return Result{"success": false, "error": "Unknown tool: " + name}
	}

	args["user_id"] = b.userID

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	result := b.run(ctx, tool, args)
	elapsed := time.Since(start)

	success, _ := result["success"].(bool)
	b.log.Info().
		Str("tool", name).
		Bool("success", success).
		Dur("duration", elapsed).
		Msg("tool call completed")
	if b.metrics != nil {
		b.metrics.RecordToolCall(name, success, elapsed)
	}
	return result
}

// parseArguments decodes the model-provided argument text. Malformed or
// empty text yields an empty argument set.
func (b *Bridge) parseArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		b.log.Debug().Err(err).Str("arguments", raw).Msg("failed to parse tool arguments, using empty set")
		return map[string]any{}
	}
	if args == nil {
		return map[string]any{}
	}
	return args
}

// run recovers tool panics into an error envelope.
func (b *Bridge) run(ctx context.Context, tool Tool, args map[string]any) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Str("tool", tool.Name()).Interface("panic", r).Msg("tool panicked")
			result = Result{
				"success": false,
				"error":   fmt.Sprintf("Tool %s failed", tool.Name()),
			}
		}
	}()
	return tool.Execute(ctx, args)
}
