package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloudpico-station/internal/config"
	"cloudpico-station/internal/db"
	"cloudpico-station/internal/db/migrate"
	"cloudpico-station/internal/httpapi"
	"cloudpico-station/internal/mqtt"
	"cloudpico-station/internal/observer"
	"cloudpico-station/internal/weather"
	"cloudpico-station/internal/weather/archive"
	"cloudpico-station/internal/weather/display"
	"cloudpico-station/internal/weather/source"
	"cloudpico-station/internal/weather/types"
)

// Run wires the station together and drives it until the configured number
// of reading cycles is done or ctx is cancelled.
func Run(ctx context.Context, cfg config.Config) error {
	return run(ctx, cfg, os.Stdout, newSource)
}

type sourceFactory func(cfg config.Config, logger *slog.Logger) (source.Source, func(), error)

type displays struct {
	conditions *display.CurrentConditions
	statistics *display.Statistics
	forecast   *display.Forecast
}

func run(ctx context.Context, cfg config.Config, out io.Writer, openSource sourceFactory) error {
	logger := slog.Default()
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"stationID", cfg.StationID,
		"mode", cfg.Mode,
		"source", cfg.Source,
		"readingInterval", cfg.ReadingInterval,
		"readingCycles", cfg.ReadingCycles,
		"detachForecastAfter", cfg.DetachForecastAfter,
		"httpAddr", cfg.HTTPAddr,
		"sqlitePath", cfg.SQLitePath,
		"bleCompanyID", fmt.Sprintf("0x%04X", cfg.BLECompanyID),
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
	)

	src, closeSource, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	station := weather.NewStation(cfg.StationID, src, logger)

	d := displays{
		conditions: display.NewCurrentConditions(display.WithOutput(out), display.WithLogger(logger)),
		statistics: display.NewStatistics(display.WithOutput(out), display.WithLogger(logger)),
		forecast:   display.NewForecast(display.WithOutput(out), display.WithLogger(logger)),
	}
	detachForecast, err := attachDisplays(cfg.Mode, station, d)
	if err != nil {
		return err
	}

	var (
		dbConn *sql.DB
		repo   archive.Repository
	)
	if cfg.ArchiveEnabled() {
		dbConn, err = db.Open(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(dbConn); closeErr != nil {
				logger.Error("db close", "error", closeErr)
			}
		}()
		if _, err := migrate.Run(ctx, dbConn, logger); err != nil {
			return err
		}
		repo = archive.NewRepository(dbConn, logger)
		if err := station.RegisterObserver(archive.NewObserver(repo, cfg.StationID, logger)); err != nil {
			return err
		}
		logger.Info("reading archive enabled")
	}

	if cfg.MQTTEnabled() {
		mqttClient := mqtt.NewClient(cfg, logger)
		defer mqttClient.Disconnect()

		if cfg.Source == config.SourceMQTT {
			// Readings arrive from the broker; republishing them would loop.
			handler := mqtt.NewTelemetryHandler(station, cfg.StationID, logger)
			if err := mqttClient.Subscribe(cfg.MQTTTopic, handler.HandleMessage); err != nil {
				return err
			}
		} else {
			publisher := mqtt.NewPublisher(mqttClient, cfg.StationID, logger)
			if err := station.RegisterObserver(publisher); err != nil {
				return err
			}
		}

		go func() {
			if err := mqttClient.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
			}
		}()
	}

	var srv *http.Server
	errCh := make(chan error, 1)
	if cfg.HTTPAddr != "" {
		deps := httpapi.Deps{
			Station:    station,
			Conditions: d.conditions,
			Statistics: d.statistics,
			Forecast:   d.forecast,
			Archive:    repo,
			Logger:     logger,
		}
		if dbConn != nil {
			deps.DB = dbConn
		}
		srv = httpapi.NewServer(cfg.HTTPAddr, httpapi.NewMux(deps), logger)
		go func() {
			logger.Info("http listening", "addr", cfg.HTTPAddr)
			errCh <- srv.ListenAndServe()
		}()
	}

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	loopErr := make(chan error, 1)
	go func() {
		if cfg.Source == config.SourceMQTT {
			<-loopCtx.Done()
			loopErr <- loopCtx.Err()
			return
		}
		loopErr <- readLoop(loopCtx, cfg, station, detachForecast, logger)
	}()

	select {
	case err = <-loopErr:
	case srvErr := <-errCh:
		cancelLoop()
		<-loopErr
		if srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
			return srvErr
		}
		return nil
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info("http shutting down")
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			return shutdownErr
		}
		if srvErr := <-errCh; srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
			return srvErr
		}
	}

	return err
}

func newSource(cfg config.Config, logger *slog.Logger) (source.Source, func(), error) {
	noop := func() {}
	switch cfg.Source {
	case config.SourceRandom:
		return source.NewRandom(source.WithExtended(cfg.ExtendedReadings)), noop, nil
	case config.SourceBME280:
		sensor, err := source.OpenBME280(cfg.BME280Address, logger)
		if err != nil {
			return nil, noop, err
		}
		return sensor, func() {
			if err := sensor.Close(); err != nil {
				logger.Error("bme280 close", "error", err)
			}
		}, nil
	case config.SourceBLE:
		scanner := source.OpenBLE(cfg.BLECompanyID, logger)
		return scanner, func() { _ = scanner.Close() }, nil
	case config.SourceMQTT:
		return nil, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown reading source %q", cfg.Source)
	}
}

// attachDisplays registers the displays in push or pull flavour and returns
// a func that detaches the forecast display.
func attachDisplays(mode string, station *weather.Station, d displays) (func(), error) {
	switch mode {
	case config.ModePush:
		for _, o := range []observer.Observer[types.Measurement]{d.conditions, d.statistics, d.forecast} {
			if err := station.RegisterObserver(o); err != nil {
				return nil, err
			}
		}
		return func() { station.RemoveObserver(d.forecast) }, nil
	case config.ModePull:
		forecast := display.NewPull(d.forecast, station)
		for _, p := range []observer.Puller{display.NewPull(d.conditions, station), display.NewPull(d.statistics, station), forecast} {
			if err := station.RegisterPuller(p); err != nil {
				return nil, err
			}
		}
		return func() { station.RemovePuller(forecast) }, nil
	default:
		return nil, fmt.Errorf("unknown station mode %q", mode)
	}
}

// readLoop reads immediately and then once per interval. A failed read is
// logged and the loop carries on; an exhausted source ends it.
func readLoop(ctx context.Context, cfg config.Config, station *weather.Station, detachForecast func(), logger *slog.Logger) error {
	ticker := time.NewTicker(cfg.ReadingInterval)
	defer ticker.Stop()

	for cycle := 1; cfg.ReadingCycles == 0 || cycle <= cfg.ReadingCycles; cycle++ {
		if err := station.ReadMeasurements(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, source.ErrExhausted) {
				logger.Info("reading source exhausted", "cycle", cycle)
				return nil
			}
			logger.Warn("read measurements failed", "cycle", cycle, "error", err)
		}

		if cycle == cfg.DetachForecastAfter {
			detachForecast()
			logger.Info("forecast display detached", "cycle", cycle)
		}

		if cycle == cfg.ReadingCycles {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	logger.Info("reading cycles complete", "cycles", cfg.ReadingCycles)
	return nil
}
