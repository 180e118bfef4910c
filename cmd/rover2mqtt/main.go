package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/rover2mqtt/internal/adapter/actor"
	"github.com/berfenger/rover2mqtt/internal/adapter/sink"
	"github.com/berfenger/rover2mqtt/internal/config"
	"github.com/berfenger/rover2mqtt/internal/core/service"
	"github.com/berfenger/rover2mqtt/internal/mqtt"
	"github.com/berfenger/rover2mqtt/internal/server"
	"github.com/berfenger/rover2mqtt/internal/util/actorutil"
	"github.com/berfenger/rover2mqtt/pkg/rover_modbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/carlmjohnson/versioninfo"
	"github.com/lmittmann/tint"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: time.DateTime})))

	var portArg string
	if len(os.Args) > 1 {
		portArg = os.Args[1]
	}

	// load and print config
	cfg, err := config.Load(viper.New(), portArg)
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(2)
	}
	slog.Info("Using", "config", config.SafeCopy(*cfg), "version", versioninfo.Short())

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("rover2mqtt stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader, err := rover_modbus.CreateRoverModbusReader(cfg.ConnectionConfig(), logger, nil)
	if err != nil {
		return err
	}

	sinks, closeSinks, err := buildSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	// latest reading store and HTTP API
	if cfg.HTTP.Enable {
		as := actorutil.NewActorSystemWithZapLogger(logger)
		defer as.Shutdown()

		props := pactor.PropsFromProducer(func() pactor.Actor {
			return adactor.NewReadingStoreActor(3*cfg.PollInterval(), logger)
		})
		pid, err := as.Root.SpawnNamed(props, "reading_store")
		if err != nil {
			return err
		}
		defer as.Root.Stop(pid)
		sinks = append(sinks, sink.Func{SinkName: "store", Fn: adactor.StoreSink(as.Root, pid)})

		apiServer := server.NewServer(*cfg, as.Root, pid)
		go func() {
			if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		defer gracefulShutdown(apiServer)
	}

	poller := service.NewPoller(reader, cfg.PollInterval(), sink.Fanout(cfg.SinkTimeout(), logger, sinks...), logger)

	if cfg.Once {
		if err := poller.Connect(); err != nil {
			return err
		}
		defer reader.Close()
		poller.Sink(poller.PollOnce())
		return nil
	}
	return poller.Run(ctx)
}

func buildSinks(cfg *config.Config, logger *zap.Logger) ([]sink.Sink, func(), error) {
	var sinks []sink.Sink
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Print {
		sinks = append(sinks, sink.Printer{Out: os.Stdout})
	}

	if cfg.JSONFile != "" {
		j, closeFile, err := sink.OpenJSONFile(cfg.JSONFile)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		sinks = append(sinks, j)
		closers = append(closers, func() {
			if err := closeFile(); err != nil {
				logger.Warn("closing json file", zap.Error(err))
			}
		})
	}

	if cfg.MQTT.Enable {
		client := mqtt.CreateMQTTClient(cfg.MQTT, mqtt.OptsFromConfig(cfg.MQTT))
		if err := client.Connect(); err != nil {
			closeAll()
			return nil, func() {}, err
		}
		sinks = append(sinks, client)
		closers = append(closers, client.Disconnect)
	}

	return sinks, closeAll, nil
}

func gracefulShutdown(apiServer *http.Server) {
	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}
	log.Println("Server exiting")
}
