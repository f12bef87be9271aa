package source

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"cloudpico-station/internal/weather/types"
)

// Sensor advertisement layout (little-endian): magic 0x01 0xD0, reading id
// uint32, temperature float32, pressure float32, humidity float32.
const (
	advertMagic0 = 0x01
	advertMagic1 = 0xD0
	advertLen    = 18

	bleDedupMaxIDsPerDevice = 500
	bleBuffer               = 16
)

// AdvertPrefix is the manufacturer data prefix every sensor advertisement starts with.
var AdvertPrefix = []byte{advertMagic0, advertMagic1}

// Advertisement is one sensor reading decoded from BLE manufacturer data.
type Advertisement struct {
	ReadingID   uint32
	Temperature float64
	Pressure    float64
	Humidity    float64
}

// ParseAdvertisement decodes manufacturer data from a sensor advertisement.
func ParseAdvertisement(data []byte) (Advertisement, error) {
	if len(data) < advertLen {
		return Advertisement{}, fmt.Errorf("payload too short: %d", len(data))
	}
	if data[0] != advertMagic0 || data[1] != advertMagic1 {
		return Advertisement{}, fmt.Errorf("invalid magic: %02X %02X", data[0], data[1])
	}
	return Advertisement{
		ReadingID:   binary.LittleEndian.Uint32(data[2:6]),
		Temperature: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[6:10]))),
		Pressure:    float64(math.Float32frombits(binary.LittleEndian.Uint32(data[10:14]))),
		Humidity:    float64(math.Float32frombits(binary.LittleEndian.Uint32(data[14:18]))),
	}, nil
}

// sighting is a filtered advertisement as seen by a scanner.
type sighting struct {
	address string
	rssi    int16
	data    []byte
}

type scanner interface {
	// Scan blocks until ctx is done or scanning fails.
	Scan(ctx context.Context, onSighting func(sighting)) error
}

// BLE turns sensor advertisements into measurements. Scanning starts at
// construction; Next hands out readings in arrival order, once per
// (device, reading id).
type BLE struct {
	logger   *slog.Logger
	now      func() time.Time
	readings chan types.Measurement

	cancel  context.CancelFunc
	done    chan struct{}
	scanErr error

	dedupMu sync.Mutex
	seen    map[string]map[uint32]struct{}
}

func newBLE(sc scanner, logger *slog.Logger) *BLE {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &BLE{
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		readings: make(chan types.Measurement, bleBuffer),
		cancel:   cancel,
		done:     make(chan struct{}),
		seen:     make(map[string]map[uint32]struct{}),
	}
	go func() {
		defer close(b.done)
		b.scanErr = sc.Scan(ctx, b.handle)
	}()
	return b
}

func (b *BLE) handle(s sighting) {
	adv, err := ParseAdvertisement(s.data)
	if err != nil {
		b.logger.Debug("ble: ignore non-sensor payload", "addr", s.address, "error", err)
		return
	}
	if !b.firstSighting(s.address, adv.ReadingID) {
		return
	}

	m := types.Measurement{
		Time:        b.now(),
		Temperature: adv.Temperature,
		Humidity:    adv.Humidity,
		Pressure:    adv.Pressure,
	}
	select {
	case b.readings <- m:
		b.logger.Debug("ble: sensor reading received",
			"addr", s.address,
			"reading_id", adv.ReadingID,
			"rssi", s.rssi,
			"data", hex.EncodeToString(s.data),
		)
	default:
		b.logger.Warn("ble: reading dropped, consumer is behind", "addr", s.address, "reading_id", adv.ReadingID)
	}
}

func (b *BLE) firstSighting(addr string, id uint32) bool {
	b.dedupMu.Lock()
	defer b.dedupMu.Unlock()

	ids := b.seen[addr]
	if ids == nil {
		ids = make(map[uint32]struct{})
		b.seen[addr] = ids
	}
	if _, ok := ids[id]; ok {
		return false
	}
	if len(ids) >= bleDedupMaxIDsPerDevice {
		ids = make(map[uint32]struct{})
		b.seen[addr] = ids
	}
	ids[id] = struct{}{}
	return true
}

// Next blocks until a new advertisement arrives. Once scanning has stopped
// it drains what is buffered, then returns the scan error or ErrExhausted.
func (b *BLE) Next(ctx context.Context) (types.Measurement, error) {
	select {
	case m := <-b.readings:
		return m, nil
	case <-ctx.Done():
		return types.Measurement{}, ctx.Err()
	case <-b.done:
	}

	select {
	case m := <-b.readings:
		return m, nil
	default:
	}
	if b.scanErr != nil {
		return types.Measurement{}, b.scanErr
	}
	return types.Measurement{}, ErrExhausted
}

// Close stops scanning and waits for the scanner to return.
func (b *BLE) Close() error {
	b.cancel()
	<-b.done
	return nil
}
