// Package outcome models the two failure severities of a bring-up step and
// runs steps sequentially.
//
// A step returns a Result instead of a bare error so that the call site,
// not a shell-style "|| true" convention, decides whether to continue:
//
//	func configureDisplay(ctx context.Context) outcome.Result {
//	    if err := xhost(ctx); err != nil {
//	        return outcome.Recoverable(err)
//	    }
//	    return outcome.OK()
//	}
//
// Pipeline logs recoverable results as warnings and stops at the first
// fatal result.
package outcome

import (
	"context"
	"errors"
	"fmt"

	"github.com/tsingmao/jetbox/internal/logger"
)

// Severity classifies a step result.
type Severity int

const (
	// SeverityOK means the step completed.
	SeverityOK Severity = iota
	// SeverityRecoverable means the step failed but the run continues.
	SeverityRecoverable
	// SeverityFatal means the run must stop with a non-zero exit code.
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "ok"
	case SeverityRecoverable:
		return "recoverable"
	case SeverityFatal:
		return "fatal"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Result is the outcome of one step.
type Result struct {
	Severity Severity
	Err      error
}

// OK returns a successful result.
func OK() Result {
	return Result{Severity: SeverityOK}
}

// Recoverable returns a result that is logged as a warning. A nil err yields OK.
func Recoverable(err error) Result {
	if err == nil {
		return OK()
	}
	return Result{Severity: SeverityRecoverable, Err: err}
}

// Fatal returns a result that aborts the run. A nil err yields OK.
func Fatal(err error) Result {
	if err == nil {
		return OK()
	}
	return Result{Severity: SeverityFatal, Err: err}
}

// Fatalf is shorthand for Fatal(fmt.Errorf(format, args...)).
func Fatalf(format string, args ...interface{}) Result {
	return Fatal(fmt.Errorf(format, args...))
}

// IsFatal reports whether the result aborts the run.
func (r Result) IsFatal() bool {
	return r.Severity == SeverityFatal
}

// Step is one named unit of a pipeline.
type Step struct {
	Name string
	Run  func(ctx context.Context) Result
}

// StepError is returned by Pipeline.Run when a step is fatal.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Pipeline runs steps in order on a single goroutine.
type Pipeline struct {
	steps []Step

	// Warnings collects recoverable results of the last Run.
	Warnings []*StepError
}

// NewPipeline creates a pipeline from steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Add appends a step.
func (p *Pipeline) Add(name string, run func(ctx context.Context) Result) {
	p.steps = append(p.steps, Step{Name: name, Run: run})
}

// Run executes the steps in order.
//
// Returns:
//   - nil when every step is OK or Recoverable
//   - *StepError for the first fatal step; later steps do not run
//   - ctx.Err() if the context is cancelled between steps
func (p *Pipeline) Run(ctx context.Context) error {
	p.Warnings = nil

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		logger.Debug("Running step: %s", step.Name)
		res := step.Run(ctx)

		switch res.Severity {
		case SeverityOK:
			logger.Debug("Step completed: %s", step.Name)
		case SeverityRecoverable:
			logger.Warn("%s: %v", step.Name, res.Err)
			p.Warnings = append(p.Warnings, &StepError{Step: step.Name, Err: res.Err})
		case SeverityFatal:
			return &StepError{Step: step.Name, Err: res.Err}
		default:
			return &StepError{Step: step.Name, Err: errors.New("unknown step severity")}
		}
	}
	return nil
}
