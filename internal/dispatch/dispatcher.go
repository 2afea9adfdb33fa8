// dispatcher.go implements the worker loop: pop the oldest Waiting
// slot, resolve the Action, validate parameters, invoke the handler,
// write results back, transmit, and release the slot.
package dispatch

import (
	"context"
	"sync"
	"time"

	iotagent "github.com/oriys/iotagent"
	"github.com/oriys/iotagent/internal/action"
	"github.com/oriys/iotagent/internal/command"
	"github.com/oriys/iotagent/internal/logging"
	"github.com/oriys/iotagent/internal/metrics"
	"github.com/oriys/iotagent/internal/plugin"
	"github.com/oriys/iotagent/internal/pool"
	"github.com/oriys/iotagent/internal/tracing"
)

// DefaultWorkers sits in the typical 2-8 range for a device agent.
const DefaultWorkers = 4

// Config configures the Dispatcher.
type Config struct {
	// Workers is the number of goroutines Start launches; <= 0 selects
	// DefaultWorkers. Single-thread mode never calls Start and drives
	// Iterate instead, so the value is unused there.
	Workers int

	// Notifier, if set, is best-effort notified on every successful
	// Execute, for deployments running more than one agent process
	// against a shared external signal (see Notifier's doc comment).
	Notifier Notifier
}

// Dispatcher owns the Queue and the worker goroutines that drain it.
type Dispatcher struct {
	queue   *Queue
	actions *pool.Pool[action.Action]
	plug    plugin.Plugin
	cfg     Config

	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool

	exclusiveMu sync.Map // map[string]*sync.Mutex, keyed by action name
}

// New constructs a Dispatcher over actions, transmitting results
// through plug.
func New(actions *pool.Pool[action.Action], plug plugin.Plugin, cfg Config) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Dispatcher{
		queue:   NewQueue(),
		actions: actions,
		plug:    plug,
		cfg:     cfg,
	}
}

// Execute enqueues req for dispatch. It never blocks longer than the
// time required to acquire the queue lock.
func (d *Dispatcher) Execute(req *action.Request) error {
	_, span := tracing.StartEnqueueSpan(context.Background(), req.ActionName, req.ID)
	defer span.End()
	if err := d.queue.Enqueue(req); err != nil {
		tracing.SetSpanError(span, err)
		return err
	}
	tracing.SetSpanOK(span)
	d.exportQueueStats()
	if d.cfg.Notifier != nil {
		if err := d.cfg.Notifier.Notify(context.Background()); err != nil {
			logging.Op().Warn("dispatch notify failed", "error", err)
		}
	}
	return nil
}

func (d *Dispatcher) exportQueueStats() {
	s := d.queue.Stats()
	metrics.SetQueueStats(s.Free, s.Waiting, s.Active)
}

// Stats exposes the queue occupancy snapshot.
func (d *Dispatcher) Stats() Stats { return d.queue.Stats() }

// Start launches cfg.Workers goroutines draining the queue. Safe to
// call once; a second call is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	logging.Op().Info("dispatch workers started", "workers", d.cfg.Workers)
}

// Stop sets to_quit, wakes every blocked worker, and waits up to
// timeout for in-flight handlers to finish. Workers that are still
// draining when timeout elapses are not killed — Stop simply returns
// and leaves them to exit on their own; all resources they touch must
// stay valid until they are joined.
func (d *Dispatcher) Stop(timeout time.Duration) {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()

	d.queue.Quit()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return
	}
	select {
	case <-done:
	case <-time.After(timeout):
		logging.Op().Warn("dispatch stop timed out, workers still draining", "timeout", timeout)
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		idx, req, ok := d.queue.popWaiting()
		if !ok {
			return // to_quit and the waiting set is empty
		}
		d.handle(context.Background(), req)
		d.queue.release(idx)
		d.exportQueueStats()
	}
}

// Iterate performs at most one dispatch in single-thread mode: callers
// that never Start workers drive progress by calling Iterate
// periodically instead.
func (d *Dispatcher) Iterate(ctx context.Context, timeout time.Duration) error {
	idx, req, ok := d.queue.drainOne()
	if !ok {
		return nil
	}
	d.handle(ctx, req)
	d.queue.release(idx)
	d.exportQueueStats()
	return d.plug.Iterate(ctx, timeout)
}

// handle runs the five dispatch steps for one request: resolve the
// action, enforce exclusivity, validate parameters, invoke the
// handler, and transmit the result.
func (d *Dispatcher) handle(ctx context.Context, req *action.Request) {
	start := time.Now()
	ctx, span := tracing.StartDispatchSpan(ctx, req.ActionName, req.ID)
	defer span.End()

	result := plugin.RequestResult{ActionName: req.ActionName, RequestID: req.ID}
	handlerKind := ""
	defer func() {
		ms := time.Since(start).Milliseconds()
		success := result.Status == "success"
		metrics.Global().RecordDispatchWithDetails(req.ActionName, result.Status, ms, success)
		entry := logging.RequestLog{
			RequestID:  req.ID,
			Action:     req.ActionName,
			Handler:    handlerKind,
			DurationMs: ms,
			Status:     result.Status,
			Success:    success,
		}
		if !success {
			if e, ok := result.Outputs["error"].(string); ok {
				entry.Error = e
			}
		}
		logging.Default().Log(&entry)
	}()

	d.queue.mu.Lock()
	quitting := d.queue.toQuit
	d.queue.mu.Unlock()
	if quitting {
		result.Status = "failure"
		result.Outputs = map[string]any{"error": iotagent.ErrShuttingDown.Message}
		d.transmit(ctx, req, result)
		return
	}

	decl, err := d.actions.Find(req.ActionName)
	if err != nil {
		result.Status = "not_found"
		result.Outputs = map[string]any{"error": "action not registered"}
		tracing.SetSpanError(span, err)
		d.transmit(ctx, req, result)
		return
	}

	if decl.Flags.Has(action.FlagExclusive) {
		muAny, _ := d.exclusiveMu.LoadOrStore(decl.Name, &sync.Mutex{})
		mu := muAny.(*sync.Mutex)
		mu.Lock()
		defer mu.Unlock()
	}

	if err := action.Validate(decl, req); err != nil {
		result.Status = "bad_request"
		result.Outputs = map[string]any{"error": err.Error()}
		tracing.SetSpanError(span, err)
		d.transmit(ctx, req, result)
		return
	}

	status, kind := d.invoke(ctx, decl, req)
	handlerKind = kind
	result.Status = status
	result.Outputs = outputsOf(req)
	tracing.SetSpanOK(span)
	d.transmit(ctx, req, result)
}

func (d *Dispatcher) invoke(ctx context.Context, decl *action.Action, req *action.Request) (status, handlerKind string) {
	switch decl.Handler.Kind {
	case action.HandlerCallback:
		if err := decl.Handler.Callback(ctx, req); err != nil {
			return statusFromError(err), "callback"
		}
		return "success", "callback"
	case action.HandlerExternalCommand:
		args, err := command.Marshal(decl, req)
		if err != nil {
			return "bad_request", "external_command"
		}
		cctx, cancel := context.WithTimeout(ctx, command.Timeout(decl))
		defer cancel()
		res := command.Run(cctx, decl, args)
		command.ToOutParameters(req, res)
		logging.GetOutputStore().Store(req.ID, decl.Name, res.Stdout, res.Stderr)
		return "success", "external_command"
	default:
		return "failure", ""
	}
}

func (d *Dispatcher) transmit(ctx context.Context, req *action.Request, result plugin.RequestResult) {
	ctx, span := tracing.StartTransmitSpan(ctx, "request_result")
	defer span.End()
	if err := d.plug.Transmit(ctx, result); err != nil {
		tracing.SetSpanError(span, err)
		logging.Op().Warn("transmit failed", "action", req.ActionName, "request", req.ID, "error", err)
		return
	}
	tracing.SetSpanOK(span)
}

// statusFromError maps a handler error onto the completion status
// transmitted back through the plugin, recovering the shared error
// kind when the handler returned one of this library's own errors.
func statusFromError(err error) string {
	kind, ok := iotagent.KindOf(err)
	if !ok {
		return "failure"
	}
	switch kind {
	case iotagent.BadRequest, iotagent.BadParameter:
		return "bad_request"
	case iotagent.NotFound:
		return "not_found"
	default:
		return "failure"
	}
}

func outputsOf(req *action.Request) map[string]any {
	out := make(map[string]any, len(req.Parameters))
	for _, p := range req.Parameters {
		out[p.Name] = p.Value
	}
	return out
}
