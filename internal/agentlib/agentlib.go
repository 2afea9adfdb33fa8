// Package agentlib is the library root: it owns the three item pools,
// the process-wide option store, the plugin handle, the dispatch
// workers, the device identifier, and the to_quit flag, and exposes
// Initialize/Connect/Disconnect/Terminate as the top-level lifecycle a
// host application drives.
package agentlib

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oriys/iotagent/internal/action"
	"github.com/oriys/iotagent/internal/config"
	"github.com/oriys/iotagent/internal/dispatch"
	"github.com/oriys/iotagent/internal/identity"
	"github.com/oriys/iotagent/internal/lifecycle"
	"github.com/oriys/iotagent/internal/logging"
	"github.com/oriys/iotagent/internal/metrics"
	"github.com/oriys/iotagent/internal/option"
	"github.com/oriys/iotagent/internal/plugin"
	"github.com/oriys/iotagent/internal/pool"
	"github.com/oriys/iotagent/internal/tracing"
)

// LogFunc is the host-supplied log callback. It is invoked only when
// level is at or above the library's configured logger level.
type LogFunc func(level Level, msg string, args ...any)

// Level mirrors slog's ordering so a host can gate the callback the
// same way internal/logging gates the operational logger.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config configures Initialize.
type Config struct {
	// IdentityPath overrides config.IdentityConfig.Path when nonzero.
	IdentityPath string
	// DispatchWorkers overrides config.DispatchConfig.Workers when nonzero.
	// A value of 0 with ConfigFile also unset means
	// dispatch.DefaultWorkers.
	DispatchWorkers int
	// LoggerLevel gates the Log callback.
	LoggerLevel Level
	// Log receives library log events. May be nil.
	Log LogFunc
	// ConfigFile, if set, is loaded with config.LoadFromFile and
	// layered under the other Config fields and the environment.
	ConfigFile string
}

// Library is one initialized instance of the agent core. The zero
// value is not usable; construct with Initialize.
type Library struct {
	deviceID string
	options  *option.Store

	telemetry *pool.Pool[Telemetry]
	alarms    *pool.Pool[Alarm]
	actions   *pool.Pool[action.Action]

	plug       plugin.Plugin
	dispatcher *dispatch.Dispatcher

	logFn    LogFunc
	logLevel Level

	toQuit atomic.Bool
	mu     sync.Mutex
}

// Initialize creates the three item pools empty, loads or generates
// the persisted device identifier, constructs the dispatcher over p,
// and returns a ready-to-Connect Library. It never starts worker
// goroutines; call Start (or drive Iterate yourself for single-thread
// mode) once the caller is ready to dispatch.
func Initialize(cfg Config, p plugin.Plugin) (*Library, error) {
	cc := config.DefaultConfig()
	if cfg.ConfigFile != "" {
		loaded, err := config.LoadFromFile(cfg.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("agentlib: load config: %w", err)
		}
		cc = loaded
	}
	cc = config.LoadFromEnv(cc)

	idPath := cfg.IdentityPath
	if idPath == "" {
		idPath = cc.Identity.Path
	}
	deviceID, err := identity.Load(idPath)
	if err != nil {
		return nil, fmt.Errorf("agentlib: load device identity: %w", err)
	}

	opts := option.New()
	if err := config.Mirror(cc, opts); err != nil {
		return nil, fmt.Errorf("agentlib: mirror config: %w", err)
	}

	workers := cfg.DispatchWorkers
	if workers == 0 {
		workers = cc.Dispatch.Workers
	}

	logging.SetLevelFromString(cc.Observability.Logging.Level)
	logging.Default().SetConsole(cc.Observability.Logging.Console)
	if fp := cc.Observability.Logging.FilePath; fp != "" {
		if err := logging.Default().SetOutput(fp); err != nil {
			return nil, fmt.Errorf("agentlib: open request log %s: %w", fp, err)
		}
	}
	if dir := cc.Command.OutputDir; dir != "" {
		if err := logging.InitOutputStore(dir, int64(cc.Command.OutputCapBytes), int(cc.Command.OutputRetention/time.Second)); err != nil {
			return nil, fmt.Errorf("agentlib: init command output store: %w", err)
		}
	}

	if cc.Observability.Metrics.Enabled {
		metrics.InitPrometheus("iotagent", nil)
		if addr := cc.Observability.Metrics.Addr; addr != "" {
			mux := http.NewServeMux()
			path := cc.Observability.Metrics.Path
			if path == "" {
				path = "/metrics"
			}
			mux.Handle(path, metrics.PrometheusHandler())
			mux.Handle(path+".json", metrics.Global().JSONHandler())
			go func() {
				if err := http.ListenAndServe(addr, mux); err != nil {
					logging.Op().Warn("metrics listener exited", "addr", addr, "error", err)
				}
			}()
		}
	}
	if cc.Observability.Tracing.Enabled {
		if err := tracing.Init(context.Background(), tracing.Config{
			Enabled:     true,
			Endpoint:    cc.Observability.Tracing.Endpoint,
			ServiceName: cc.Observability.Tracing.ServiceName,
			SampleRatio: cc.Observability.Tracing.SampleRatio,
		}); err != nil {
			return nil, fmt.Errorf("agentlib: init tracing: %w", err)
		}
	}

	actionPool := pool.New(func(a *action.Action) string { return a.Name })

	lib := &Library{
		deviceID:  deviceID,
		options:   opts,
		telemetry: pool.New(func(t *Telemetry) string { return t.Name }),
		alarms:    pool.New(func(a *Alarm) string { return a.Name }),
		actions:   actionPool,
		plug:      p,
		logFn:     cfg.Log,
		logLevel:  cfg.LoggerLevel,
	}
	lib.dispatcher = dispatch.New(actionPool, p, dispatch.Config{Workers: workers})

	lib.log(LevelInfo, "library initialized", "device_id", deviceID, "workers", workers)
	return lib, nil
}

// DeviceID returns the persisted device identifier.
func (l *Library) DeviceID() string { return l.deviceID }

// Options returns the process-wide option store.
func (l *Library) Options() *option.Store { return l.options }

// Connect forwards to the plugin, bounding the call to timeout when
// timeout > 0.
func (l *Library) Connect(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()
	return l.plug.Connect(ctx)
}

// Disconnect forwards to the plugin, bounding the call to timeout when
// timeout > 0.
func (l *Library) Disconnect(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()
	return l.plug.Disconnect(ctx)
}

// Start launches the dispatcher's worker goroutines. A zero-worker
// Library is valid: the caller drives progress with Iterate instead.
func (l *Library) Start() {
	l.dispatcher.Start()
}

// Iterate performs at most one queue dispatch and at most one plugin
// iteration, for single-thread mode callers that never call Start.
func (l *Library) Iterate(ctx context.Context, timeout time.Duration) error {
	return l.dispatcher.Iterate(ctx, timeout)
}

// Terminate sets to_quit, joins the worker threads (waiting up to
// timeout), deregisters every still-Registered item across all three
// pools, and releases the pools. It is safe to call Terminate more
// than once.
func (l *Library) Terminate(ctx context.Context, timeout time.Duration) error {
	if !l.toQuit.CompareAndSwap(false, true) {
		return nil
	}
	l.dispatcher.Stop(timeout)

	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error

	telemetryNames := l.telemetry.Names()
	for _, name := range telemetryNames {
		t, err := l.telemetry.Find(name)
		if err != nil {
			continue
		}
		if t.Lifecycle.State() != lifecycle.Unregistered {
			if err := t.Deregister(ctx, l.plug); err != nil {
				errs = append(errs, err)
			}
		}
		_ = l.telemetry.Free(name)
	}

	alarmNames := l.alarms.Names()
	for _, name := range alarmNames {
		a, err := l.alarms.Find(name)
		if err != nil {
			continue
		}
		if a.Lifecycle.State() != lifecycle.Unregistered {
			if err := a.Deregister(ctx, l.plug); err != nil {
				errs = append(errs, err)
			}
		}
		_ = l.alarms.Free(name)
	}

	actionNames := l.actions.Names()
	for _, name := range actionNames {
		a, err := l.actions.Find(name)
		if err != nil {
			continue
		}
		if a.Lifecycle.State() != lifecycle.Unregistered {
			if err := a.Deregister(ctx, l.plug); err != nil {
				errs = append(errs, err)
			}
		}
		_ = l.actions.Free(name)
	}

	if err := tracing.Shutdown(ctx); err != nil {
		l.log(LevelWarn, "tracing shutdown failed", "error", err)
	}

	l.log(LevelInfo, "library terminated", "device_id", l.deviceID)
	if len(errs) > 0 {
		return fmt.Errorf("agentlib: terminate: %d item(s) failed to deregister cleanly: %w", len(errs), errs[0])
	}
	return nil
}

// exportPoolStats pushes the three pools' occupancy snapshots to the
// metrics gauges. Called after every allocate/free.
func (l *Library) exportPoolStats() {
	ts := l.telemetry.Stats()
	metrics.SetPoolStats("telemetry", ts.Count, ts.StackUsed, ts.HeapUsed)
	as := l.alarms.Stats()
	metrics.SetPoolStats("alarm", as.Count, as.StackUsed, as.HeapUsed)
	cs := l.actions.Stats()
	metrics.SetPoolStats("action", cs.Count, cs.StackUsed, cs.HeapUsed)
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// log delegates to the registered callback when level is at or above
// the library's configured logger level, and always forwards to the
// package-wide operational logger so the library is usable stand-alone
// during development with no callback registered.
func (l *Library) log(level Level, msg string, args ...any) {
	opLog := logging.Op()
	switch level {
	case LevelDebug:
		opLog.Debug(msg, args...)
	case LevelWarn:
		opLog.Warn(msg, args...)
	case LevelError:
		opLog.Error(msg, args...)
	default:
		opLog.Info(msg, args...)
	}
	if l.logFn != nil && level >= l.logLevel {
		l.logFn(level, msg, args...)
	}
}
