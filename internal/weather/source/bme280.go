package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"cloudpico-station/internal/weather/types"
)

// BME280 reads a Bosch BME280 attached to the default I2C bus.
type BME280 struct {
	bus    i2c.BusCloser
	dev    *bmxx80.Dev
	logger *slog.Logger
}

// OpenBME280 initialises the host drivers and opens the sensor at addr
// (usually 0x76 or 0x77).
func OpenBME280(addr uint16, logger *slog.Logger) (*BME280, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}

	bus, err := i2creg.Open("") // default bus, usually /dev/i2c-1
	if err != nil {
		return nil, fmt.Errorf("i2c open: %w", err)
	}

	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("bme280 at %#x: %w", addr, err)
	}

	logger.Info("bme280 opened", "address", fmt.Sprintf("%#x", addr), "device", dev.String())
	return &BME280{bus: bus, dev: dev, logger: logger}, nil
}

func (b *BME280) Next(ctx context.Context) (types.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return types.Measurement{}, err
	}

	var env physic.Env
	if err := b.dev.Sense(&env); err != nil {
		return types.Measurement{}, fmt.Errorf("bme280 sense: %w", err)
	}
	return envToMeasurement(env, time.Now().UTC()), nil
}

// Close halts the sensor and releases the bus.
func (b *BME280) Close() error {
	haltErr := b.dev.Halt()
	if err := b.bus.Close(); err != nil {
		return err
	}
	return haltErr
}

func envToMeasurement(env physic.Env, ts time.Time) types.Measurement {
	return types.Measurement{
		Time:        ts,
		Temperature: env.Temperature.Celsius(),
		// Humidity is fixed point at 0.00001 %RH.
		Humidity: float64(env.Humidity) / float64(physic.PercentRH),
		// Pressure is stored in nano pascal; hPa = 100 Pa.
		Pressure: float64(env.Pressure) / float64(100*physic.Pascal),
	}
}
