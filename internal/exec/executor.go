package exec

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ToolExecutor dispatches Execute calls to registered tools.
// No retries are performed; a failing tool fails the call.
type ToolExecutor struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *zap.Logger
}

// NewToolExecutor creates an executor with no tools registered.
func NewToolExecutor(logger *zap.Logger) *ToolExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolExecutor{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool under id. Registering the same id twice is an error.
func (e *ToolExecutor) Register(id string, tool Tool) error {
	if id == "" {
		return errors.New("register tool: empty identifier")
	}
	if tool == nil {
		return fmt.Errorf("register tool %s: nil tool", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.tools[id]; exists {
		return fmt.Errorf("register tool %s: already registered", id)
	}
	e.tools[id] = tool
	return nil
}

// Execute runs goal of the tool registered under id.
func (e *ToolExecutor) Execute(ctx context.Context, id, goal string, cfg Config) error {
	e.mu.RLock()
	tool, ok := e.tools[id]
	e.mu.RUnlock()

	if !ok {
		return Failf(id, goal, ReasonUnknownTool, "no tool registered as %q", id)
	}
	if !slices.Contains(tool.Goals(), goal) {
		return Failf(id, goal, ReasonUnknownGoal, "tool offers goals %v", tool.Goals())
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return &ExecutionFailure{Tool: id, Goal: goal, Reason: ReasonMalformedConfig, Message: err.Error(), Err: err}
	}

	log := e.logger.With(zap.String("tool", id), zap.String("goal", goal))
	if ce := log.Check(zap.DebugLevel, "executing tool"); ce != nil {
		tree, err := cfg.YAML()
		if err != nil {
			return &ExecutionFailure{Tool: id, Goal: goal, Reason: ReasonMalformedConfig, Message: err.Error(), Err: err}
		}
		ce.Write(zap.ByteString("config", tree))
	}

	start := time.Now()
	err := tool.Run(ctx, goal, cfg.Clone())
	elapsed := time.Since(start)

	if err == nil {
		log.Debug("tool finished", zap.Duration("duration", elapsed))
		return nil
	}

	var failure *ExecutionFailure
	if errors.As(err, &failure) {
		if failure.Tool == "" {
			failure.Tool = id
		}
		if failure.Goal == "" {
			failure.Goal = goal
		}
	} else {
		failure = &ExecutionFailure{Tool: id, Goal: goal, Reason: ReasonToolFailed, Err: err}
	}

	log.Debug("tool failed", zap.Duration("duration", elapsed), zap.String("reason", string(failure.Reason)))
	return failure
}

// Verify ToolExecutor implements Executor at compile time.
var _ Executor = (*ToolExecutor)(nil)
