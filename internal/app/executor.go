package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/callrelay/internal/platform/logging"
)

// Operations with side effects outside the process run as
// Validate → Perform → Verify → Archive → Respond, so that nothing is handed
// off (Archive) before the produced result has been checked (Verify).

// ExecutionStep names a step of an Operation.
type ExecutionStep string

const (
	StepValidate ExecutionStep = "validate"
	StepPerform  ExecutionStep = "perform"
	StepVerify   ExecutionStep = "verify"
	StepArchive  ExecutionStep = "archive"
	StepRespond  ExecutionStep = "respond"
)

// ExecutionError wraps errors with the step where they occurred.
type ExecutionError struct {
	Operation string
	Step      ExecutionStep
	Cause     error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Operation, e.Step, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Executor runs Operations with step logging and a span per run.
type Executor struct {
	logger *slog.Logger
	tracer trace.Tracer
}

// NewExecutor creates an executor. A nil logger uses slog.Default.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		logger: logger,
		tracer: otel.Tracer("github.com/jsamuelsen/callrelay/internal/app"),
	}
}

// Operation defines the steps of one run. Nil steps are skipped.
type Operation[I, P, V, O any] struct {
	Name string

	// Validate checks inputs before anything happens.
	Validate func(ctx context.Context, input I) error

	// Perform produces the intermediate result.
	Perform func(ctx context.Context, input I) (P, error)

	// Verify checks, and may substitute, the intermediate result.
	Verify func(ctx context.Context, input I, performed P) (V, error)

	// Archive hands the verified result off.
	Archive func(ctx context.Context, input I, verified V) error

	// Respond shapes the result for the caller.
	Respond func(ctx context.Context, input I, verified V) (O, error)
}

// Execute runs op on input.
func Execute[I, P, V, O any](ctx context.Context, exec *Executor, op Operation[I, P, V, O], input I) (out O, err error) {
	logger := exec.logger
	if l, ok := logging.Lookup(ctx); ok {
		logger = l
	}

	logger = logger.With(slog.String("operation", op.Name))
	start := time.Now()

	ctx, span := exec.tracer.Start(ctx, "operation "+op.Name)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	fail := func(step ExecutionStep, cause error) error {
		level := slog.LevelError
		if step == StepValidate {
			level = slog.LevelWarn
		}

		logger.Log(ctx, level, "step failed", slog.String("step", string(step)), slog.Any("error", cause))
		span.SetAttributes(attribute.String("operation.failed_step", string(step)))

		return &ExecutionError{Operation: op.Name, Step: step, Cause: cause}
	}

	step := func(s ExecutionStep) {
		logger.DebugContext(ctx, "step", slog.String("step", string(s)))
	}

	var zero O

	if op.Validate != nil {
		step(StepValidate)

		if err := op.Validate(ctx, input); err != nil {
			return zero, fail(StepValidate, err)
		}
	}

	var performed P

	if op.Perform != nil {
		step(StepPerform)

		if performed, err = op.Perform(ctx, input); err != nil {
			return zero, fail(StepPerform, err)
		}
	}

	var verified V

	if op.Verify != nil {
		step(StepVerify)

		if verified, err = op.Verify(ctx, input, performed); err != nil {
			return zero, fail(StepVerify, err)
		}
	}

	if op.Archive != nil {
		step(StepArchive)

		if err := op.Archive(ctx, input, verified); err != nil {
			return zero, fail(StepArchive, err)
		}
	}

	if op.Respond != nil {
		step(StepRespond)

		if out, err = op.Respond(ctx, input, verified); err != nil {
			return zero, fail(StepRespond, err)
		}
	}

	logger.InfoContext(ctx, "operation completed", slog.Duration("duration", time.Since(start)))

	return out, nil
}

// GetExecutionStep extracts the failed step from an execution error.
func GetExecutionStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Step, true
	}

	return "", false
}
