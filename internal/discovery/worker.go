// Package discovery runs the background loop that asks the oracle for SNPs
// related to the ones already known, matches them against the user's
// genome and improves the matches.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/v64/genome-browser/internal/duckdb"
	"github.com/v64/genome-browser/internal/enrich"
	"github.com/v64/genome-browser/internal/metrics"
	"github.com/v64/genome-browser/internal/oracle"
)

// Data log source and types written by the worker.
const (
	LogSource = "snp_discovery"

	TypeStarted      = "worker_started"
	TypeStopped      = "worker_stopped"
	TypeExploration  = "snp_exploration"
	TypeMatched      = "snp_matched"
	TypeRandom       = "random_exploration"
	TypeError        = "discovery_error"
	TypeConversation = "discovery_conversation"
)

// Log levels of LogLine.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// ErrClosed is returned by commands sent after Run has returned.
var ErrClosed = errors.New("discovery worker closed")

var errStopped = errors.New("discovery stopped")

// Config tunes the loop.
type Config struct {
	CycleDelay       time.Duration `mapstructure:"cycle_delay"`
	ImprovementDelay time.Duration `mapstructure:"improvement_delay"`
	ErrorBackoff     time.Duration `mapstructure:"error_backoff"`
	QueueCapacity    int           `mapstructure:"queue_capacity"`
	LogCapacity      int           `mapstructure:"log_capacity"`
	// RandomEvery explores a random unimproved SNP every N cycles.
	RandomEvery      int     `mapstructure:"random_every"`
	SeedLimit        int     `mapstructure:"seed_limit"`
	NotableMagnitude float64 `mapstructure:"notable_magnitude"`
}

// DefaultConfig returns the standard pacing.
func DefaultConfig() Config {
	return Config{
		CycleDelay:       2 * time.Second,
		ImprovementDelay: time.Second,
		ErrorBackoff:     10 * time.Second,
		QueueCapacity:    1000,
		LogCapacity:      200,
		RandomEvery:      3,
		SeedLimit:        50,
		NotableMagnitude: 2,
	}
}

// LogLine is one entry of the in-memory activity log.
type LogLine struct {
	Time    time.Time
	Level   string
	Message string
}

// ErrorRecord is a failure caught by the loop.
type ErrorRecord struct {
	Time    time.Time
	Context string
	Error   string
}

// Status is a point-in-time snapshot of the worker.
type Status struct {
	Running      bool
	Explored     int
	QueueSize    int
	Discovered   int
	Dropped      int
	Matched      int
	Improved     int
	Cycles       int
	LastActivity time.Time
	CurrentSNP   string
	RecentErrors []ErrorRecord
}

type command int

const (
	cmdStart command = iota
	cmdStop
	cmdClearExplored
)

// request is a command for Run. errc, when set, receives the outcome.
type request struct {
	cmd  command
	errc chan error
}

const (
	maxErrors       = 50
	reportedErrors  = 5
	triggeredBy     = "discovery_worker"
	maxPromptLogLen = 500
)

// Worker owns the discovery state. Run is the only goroutine that mutates
// it; Start, Stop and ClearExplored are delivered to Run as commands, and
// readers get snapshots under mu.
type Worker struct {
	enricher *enrich.Enricher
	store    *duckdb.Store
	oracle   oracle.Oracle
	cfg      Config
	logger   *zap.Logger
	metrics  *metrics.Metrics

	cmds chan request
	done chan struct{}

	mu           sync.Mutex
	running      bool
	queue        *Queue
	explored     map[string]bool
	discovered   int
	dropped      int
	matched      int
	improved     int
	cycles       int
	lastActivity time.Time
	current      string
	logs         []LogLine
	errs         []ErrorRecord
}

// New creates a worker. The enricher must have an oracle configured.
func New(e *enrich.Enricher, cfg Config) (*Worker, error) {
	if e.Oracle() == nil {
		return nil, errors.New("discovery requires an oracle")
	}
	def := DefaultConfig()
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	if cfg.LogCapacity <= 0 {
		cfg.LogCapacity = def.LogCapacity
	}
	if cfg.SeedLimit <= 0 {
		cfg.SeedLimit = def.SeedLimit
	}
	return &Worker{
		enricher: e,
		store:    e.Store(),
		oracle:   e.Oracle(),
		cfg:      cfg,
		logger:   zap.NewNop(),
		cmds:     make(chan request, 8),
		done:     make(chan struct{}),
		queue:    NewQueue(cfg.QueueCapacity),
		explored: make(map[string]bool),
	}, nil
}

// SetLogger sets the logger.
func (w *Worker) SetLogger(l *zap.Logger) {
	w.logger = l
}

// SetMetrics sets the Prometheus collectors.
func (w *Worker) SetMetrics(m *metrics.Metrics) {
	w.metrics = m
}

// Start asks the loop to start and waits until it has. It returns the
// seeding error when the worker could not start. Starting a running
// worker is a no-op.
func (w *Worker) Start() error {
	errc := make(chan error, 1)
	if err := w.send(request{cmd: cmdStart, errc: errc}); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	case <-w.done:
		return ErrClosed
	}
}

// Stop asks the loop to stop after the current step.
func (w *Worker) Stop() error {
	return w.send(request{cmd: cmdStop})
}

// ClearExplored forgets which SNPs were explored so they can be revisited.
func (w *Worker) ClearExplored() error {
	return w.send(request{cmd: cmdClearExplored})
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) send(r request) error {
	select {
	case <-w.done:
		return ErrClosed
	default:
	}
	select {
	case w.cmds <- r:
		return nil
	case <-w.done:
		return ErrClosed
	}
}

// Run processes commands and runs discovery cycles while started. It
// returns when ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	for {
		if !w.isRunning() {
			select {
			case <-ctx.Done():
				return
			case r := <-w.cmds:
				w.dispatch(ctx, r)
			}
			continue
		}

		err := w.safeCycle(ctx)
		if ctx.Err() != nil {
			w.stop(context.WithoutCancel(ctx))
			return
		}

		delay := w.cfg.CycleDelay
		switch {
		case errors.Is(err, errStopped):
			continue
		case err != nil:
			w.recordError(ctx, "discovery_cycle", err)
			delay = w.cfg.ErrorBackoff
		default:
			s := w.Status()
			w.logf(LevelInfo, "Cycle %d: Queue=%d, Discovered=%d, Matched=%d, Improved=%d",
				s.Cycles, s.QueueSize, s.Discovered, s.Matched, s.Improved)
		}
		if !w.pause(ctx, delay) && ctx.Err() != nil {
			w.stop(context.WithoutCancel(ctx))
			return
		}
	}
}

// safeCycle runs one cycle, turning a panic into an error so the loop
// survives it.
func (w *Worker) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("discovery cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
			w.setCurrent("")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.cycle(ctx)
}

func (w *Worker) dispatch(ctx context.Context, r request) {
	err := w.handle(ctx, r.cmd)
	if r.errc != nil {
		r.errc <- err
	}
}

func (w *Worker) handle(ctx context.Context, c command) error {
	switch c {
	case cmdStart:
		return w.start(ctx)
	case cmdStop:
		w.stop(ctx)
	case cmdClearExplored:
		w.mu.Lock()
		w.explored = make(map[string]bool)
		w.metrics.Sizes(w.queue.Len(), 0)
		w.mu.Unlock()
		w.logf(LevelInfo, "Cleared explored SNPs set - will re-explore all SNPs")
	}
	return nil
}

func (w *Worker) start(ctx context.Context) error {
	if w.isRunning() {
		w.logf(LevelWarn, "Discovery worker is already running")
		return nil
	}
	w.logf(LevelInfo, "Starting SNP discovery worker...")

	seeds, err := w.seeds(ctx)
	if err != nil {
		w.recordError(ctx, "load_seeds", err)
		return fmt.Errorf("load seeds: %w", err)
	}
	w.enqueueSeeds(seeds)
	w.logf(LevelInfo, "Loaded %d seed SNPs for exploration", len(seeds))

	w.mu.Lock()
	w.running = true
	w.mu.Unlock()

	w.dataLog(ctx, TypeStarted, "", fmt.Sprintf("SNP discovery worker started with %d seeds", len(seeds)),
		map[string]any{"initial_seeds": seeds[:min(10, len(seeds))]})
	return nil
}

func (w *Worker) stop(ctx context.Context) {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.current = ""
	meta := map[string]any{
		"total_explored": len(w.explored),
		"total_improved": w.improved,
		"total_matched":  w.matched,
	}
	w.mu.Unlock()

	w.logf(LevelInfo, "SNP discovery worker stopped")
	w.dataLog(ctx, TypeStopped, "", "SNP discovery worker stopped", meta)
}

func (w *Worker) isRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// stopRequested handles pending commands without blocking and reports
// whether the loop should stop.
func (w *Worker) stopRequested(ctx context.Context) bool {
	for {
		select {
		case r := <-w.cmds:
			w.dispatch(ctx, r)
		default:
			return ctx.Err() != nil || !w.isRunning()
		}
	}
}

// pause waits d while still handling commands. It returns false when the
// loop should stop.
func (w *Worker) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !w.stopRequested(ctx)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case r := <-w.cmds:
			w.dispatch(ctx, r)
			if !w.isRunning() {
				return false
			}
		case <-t.C:
			return true
		}
	}
}

// Status returns a snapshot of the worker state.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Status{
		Running:      w.running,
		Explored:     len(w.explored),
		QueueSize:    w.queue.Len(),
		Discovered:   w.discovered,
		Dropped:      w.dropped,
		Matched:      w.matched,
		Improved:     w.improved,
		Cycles:       w.cycles,
		LastActivity: w.lastActivity,
		CurrentSNP:   w.current,
	}
	from := max(0, len(w.errs)-reportedErrors)
	s.RecentErrors = append([]ErrorRecord(nil), w.errs[from:]...)
	return s
}

// Logs returns up to limit of the most recent log lines, oldest first.
func (w *Worker) Logs(limit int) []LogLine {
	w.mu.Lock()
	defer w.mu.Unlock()
	if limit <= 0 || limit > len(w.logs) {
		limit = len(w.logs)
	}
	return append([]LogLine(nil), w.logs[len(w.logs)-limit:]...)
}

func (w *Worker) logf(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch level {
	case LevelDebug:
		w.logger.Debug(msg)
	case LevelWarn:
		w.logger.Warn(msg)
	case LevelError:
		w.logger.Error(msg)
	default:
		w.logger.Info(msg)
	}

	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logs = append(w.logs, LogLine{Time: now, Level: level, Message: msg})
	if over := len(w.logs) - w.cfg.LogCapacity; over > 0 {
		w.logs = append([]LogLine(nil), w.logs[over:]...)
	}
	w.lastActivity = now
}

// recordError keeps err in the error buffer and the data log.
func (w *Worker) recordError(ctx context.Context, where string, err error) {
	w.logf(LevelError, "Error in %s: %v", where, err)
	w.mu.Lock()
	w.errs = append(w.errs, ErrorRecord{Time: time.Now(), Context: where, Error: err.Error()})
	if over := len(w.errs) - maxErrors; over > 0 {
		w.errs = append([]ErrorRecord(nil), w.errs[over:]...)
	}
	w.mu.Unlock()
	w.dataLog(ctx, TypeError, "", err.Error(), map[string]any{"context": where})
}

func (w *Worker) dataLog(ctx context.Context, dataType, ref, content string, meta map[string]any) {
	w.writeLog(ctx, LogSource, dataType, ref, content, meta)
}

func (w *Worker) writeLog(ctx context.Context, source, dataType, ref, content string, meta map[string]any) {
	err := w.store.AppendLog(ctx, &duckdb.LogEntry{
		Source:      source,
		DataType:    dataType,
		ReferenceID: ref,
		Content:     content,
		Metadata:    meta,
	})
	if err != nil && ctx.Err() == nil {
		w.logf(LevelError, "Failed to log to data_log: %v", err)
	}
}
