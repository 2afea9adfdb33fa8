package main

import (
	"context"
	"fmt"
	"time"

	"github.com/oriys/iotagent/internal/action"
	"github.com/oriys/iotagent/internal/agentlib"
	"github.com/oriys/iotagent/internal/config"
	"github.com/oriys/iotagent/internal/logging"
	"github.com/oriys/iotagent/internal/mqttplugin"
	"github.com/oriys/iotagent/internal/plugin"
	"github.com/oriys/iotagent/internal/telemetrystore"
	"github.com/oriys/iotagent/internal/value"
)

// buildPlugin returns the mqttplugin.Plugin dialing a companion bridge
// process when --bridge-addr is set, or when cc enables MQTT with a
// non-empty control_rpc_addr; otherwise an in-memory plugin.Loopback
// suitable for running the sample entirely standalone.
// When the telemetry audit store is enabled in cc, the plugin is
// wrapped in a telemetrystore.Auditing decorator.
func buildPlugin(ctx context.Context, cc *config.Config) (plugin.Plugin, *telemetrystore.Auditing, error) {
	var p plugin.Plugin
	switch {
	case mqttAddr != "":
		p = mqttplugin.New(mqttplugin.Config{Addr: mqttAddr})
	case cc.MQTT.Enabled && cc.MQTT.ControlRPCAddr != "":
		p = mqttplugin.New(mqttplugin.Config{Addr: cc.MQTT.ControlRPCAddr})
	default:
		p = plugin.NewLoopback()
	}
	if !cc.TelemetryStore.Enabled {
		return p, nil, nil
	}
	store, err := telemetrystore.Open(ctx, cc.TelemetryStore.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open telemetry store: %w", err)
	}
	audit := &telemetrystore.Auditing{Plugin: p, Store: store}
	return audit, audit, nil
}

// buildLibrary initializes a Library over buildPlugin() and connects
// it, ready for the caller to register items against.
func buildLibrary(ctx context.Context) (*agentlib.Library, error) {
	logging.InitStructured("text", "info")

	cc := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cc = loaded
	}
	cc = config.LoadFromEnv(cc)

	plug, audit, err := buildPlugin(ctx, cc)
	if err != nil {
		return nil, err
	}

	lib, err := agentlib.Initialize(agentlib.Config{
		IdentityPath: idPath,
		ConfigFile:   configFile,
		LoggerLevel:  agentlib.LevelInfo,
	}, plug)
	if err != nil {
		return nil, fmt.Errorf("initialize library: %w", err)
	}
	if audit != nil {
		audit.DeviceID = lib.DeviceID()
	}
	if err := lib.Connect(ctx, 5*time.Second); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return lib, nil
}

// registerSampleItems registers the telemetry channel, alarm, and two
// actions (one callback, one external command) this sample exercises:
// "temp" (Float32 telemetry), "overheat" (alarm), "echo" (callback
// action copying "in" to "out"), and "run_script" (external-command
// action shelling out to /bin/echo).
func registerSampleItems(ctx context.Context, lib *agentlib.Library) error {
	if _, err := lib.RegisterTelemetry(ctx, "temp", value.KindFloat32); err != nil {
		return fmt.Errorf("register telemetry: %w", err)
	}
	if _, err := lib.RegisterAlarm(ctx, "overheat"); err != nil {
		return fmt.Errorf("register alarm: %w", err)
	}

	echo := action.New("echo")
	_ = echo.AddParameter(action.Parameter{Name: "in", Direction: action.InRequired, Type: value.KindString})
	_ = echo.AddParameter(action.Parameter{Name: "out", Direction: action.Out, Type: value.KindString})
	echo.Handler = action.Handler{
		Kind: action.HandlerCallback,
		Callback: func(ctx context.Context, req *action.Request) error {
			in, _ := req.Get("in")
			req.Bind("out", in.Copy())
			return nil
		},
	}
	if _, err := lib.RegisterAction(ctx, echo); err != nil {
		return fmt.Errorf("register action echo: %w", err)
	}

	runScript := action.New("run_script")
	_ = runScript.AddParameter(action.Parameter{Name: "msg", Direction: action.In, Type: value.KindString})
	runScript.Handler = action.Handler{Kind: action.HandlerExternalCommand, ExternalCommand: "/bin/echo"}
	if _, err := lib.RegisterAction(ctx, runScript); err != nil {
		return fmt.Errorf("register action run_script: %w", err)
	}
	return nil
}
