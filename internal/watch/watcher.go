package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

const (
	missingStatusSourceMessageConstant = "status source not configured"
	renderErrorTemplateConstant        = "failed to render report: %w"
	statusErrorTemplateConstant        = "failed to collect status: %w"
	cycleCompletedMessageConstant      = "polling cycle completed"
	watchSettledMessageConstant        = "all repositories settled"
	watchStoppedMessageConstant        = "watch stopped"
	logFieldCycleConstant              = "cycle"
	logFieldAttentionConstant          = "attention"
)

// ErrStatusSourceMissing indicates a watcher was constructed without a status source.
var ErrStatusSourceMissing = errors.New(missingStatusSourceMessageConstant)

// StatusSource produces reports and refreshes remote-tracking state.
type StatusSource interface {
	StatusReport(executionContext context.Context) (Report, error)
	FetchAll(executionContext context.Context) FetchSummary
}

// Sleeper blocks for duration or until the context is done.
type Sleeper func(executionContext context.Context, duration time.Duration) error

// WatcherOptions controls the polling cadence.
type WatcherOptions struct {
	Interval       time.Duration
	FetchOnStart   bool
	FetchEachCycle bool
	ClearScreen    bool
}

// WatcherDependencies supplies collaborators for a Watcher.
type WatcherDependencies struct {
	Source   StatusSource
	Output   io.Writer
	Renderer *ReportRenderer
	Sleeper  Sleeper
	Logger   *zap.Logger
}

// Watcher polls a StatusSource until every repository is settled or the context ends.
type Watcher struct {
	source   StatusSource
	output   io.Writer
	renderer *ReportRenderer
	sleeper  Sleeper
	logger   *zap.Logger
	options  WatcherOptions
}

// NewWatcher applies defaults to unset collaborators.
func NewWatcher(dependencies WatcherDependencies, options WatcherOptions) (*Watcher, error) {
	if dependencies.Source == nil {
		return nil, ErrStatusSourceMissing
	}
	output := dependencies.Output
	if output == nil {
		output = io.Discard
	}
	renderer := dependencies.Renderer
	if renderer == nil {
		renderer = NewReportRenderer(output)
	}
	sleeper := dependencies.Sleeper
	if sleeper == nil {
		sleeper = ContextSleep
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if options.Interval <= 0 {
		options.Interval = DefaultIntervalConstant
	}
	return &Watcher{
		source:   dependencies.Source,
		output:   output,
		renderer: renderer,
		sleeper:  sleeper,
		logger:   logger,
		options:  options,
	}, nil
}

// Run executes polling cycles. Each cycle optionally fetches, collects a report, clears the screen and
// prints the recommendations. It returns nil once a report is settled or the context is cancelled.
func (watcher *Watcher) Run(executionContext context.Context) error {
	if watcher.options.FetchOnStart && !watcher.options.FetchEachCycle {
		watcher.source.FetchAll(executionContext)
	}

	for cycle := 1; ; cycle++ {
		if executionContext.Err() != nil {
			watcher.logger.Debug(watchStoppedMessageConstant, zap.Int(logFieldCycleConstant, cycle))
			return nil
		}
		if watcher.options.FetchEachCycle {
			watcher.source.FetchAll(executionContext)
		}

		report, reportError := watcher.source.StatusReport(executionContext)
		if reportError != nil {
			if executionContext.Err() != nil {
				watcher.logger.Debug(watchStoppedMessageConstant, zap.Int(logFieldCycleConstant, cycle))
				return nil
			}
			return fmt.Errorf(statusErrorTemplateConstant, reportError)
		}

		if renderError := watcher.render(report); renderError != nil {
			return renderError
		}

		attention := len(report.AttentionEntries())
		watcher.logger.Debug(cycleCompletedMessageConstant, zap.Int(logFieldCycleConstant, cycle), zap.Int(logFieldAttentionConstant, attention))
		if report.Settled() {
			if _, writeError := io.WriteString(watcher.output, watcher.renderer.RenderSettled()); writeError != nil {
				return fmt.Errorf(renderErrorTemplateConstant, writeError)
			}
			watcher.logger.Info(watchSettledMessageConstant, zap.Int(logFieldCycleConstant, cycle))
			return nil
		}

		if sleepError := watcher.sleeper(executionContext, watcher.options.Interval); sleepError != nil {
			watcher.logger.Debug(watchStoppedMessageConstant, zap.Int(logFieldCycleConstant, cycle))
			return nil
		}
	}
}

func (watcher *Watcher) render(report Report) error {
	if watcher.options.ClearScreen {
		if clearError := clearScreen(watcher.output); clearError != nil {
			return fmt.Errorf(renderErrorTemplateConstant, clearError)
		}
	}
	if _, writeError := io.WriteString(watcher.output, watcher.renderer.Render(report)); writeError != nil {
		return fmt.Errorf(renderErrorTemplateConstant, writeError)
	}
	return nil
}

// ContextSleep waits for duration and returns the context error if it ends first.
func ContextSleep(executionContext context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-timer.C:
		return nil
	}
}
