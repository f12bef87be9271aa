package source

import (
	"context"
	"fmt"
	"log/slog"

	"tinygo.org/x/bluetooth"
)

// OpenBLE starts scanning the default adapter for sensor advertisements
// carrying companyID.
func OpenBLE(companyID uint16, logger *slog.Logger) *BLE {
	if logger == nil {
		logger = slog.Default()
	}
	sc := &bluezScanner{
		adapter:   bluetooth.DefaultAdapter,
		companyID: companyID,
		prefix:    AdvertPrefix,
		logger:    logger,
	}
	return newBLE(sc, logger)
}

type bluezScanner struct {
	adapter   *bluetooth.Adapter
	companyID uint16
	prefix    []byte
	logger    *slog.Logger
}

func (s *bluezScanner) Scan(ctx context.Context, onSighting func(sighting)) error {
	s.logger.Info("ble: enabling adapter")
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = s.adapter.StopScan() })
	defer stop()

	s.logger.Info("ble: scanning started",
		"filter_company", fmt.Sprintf("0x%04X", s.companyID),
		"filter_prefix", fmt.Sprintf("% X", s.prefix),
	)

	// Scan blocks until StopScan or error.
	err := s.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		for _, md := range r.ManufacturerData() {
			if !matchesManufacturer(md.CompanyID, md.Data, s.companyID, s.prefix) {
				continue
			}
			onSighting(sighting{
				address: r.Address.String(),
				rssi:    r.RSSI,
				data:    append([]byte(nil), md.Data...),
			})
			return
		}
	})

	if ctx.Err() != nil {
		s.logger.Info("ble: scanning stopped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("ble scan: %w", err)
	}
	return nil
}

func matchesManufacturer(companyID uint16, data []byte, wantCompany uint16, prefix []byte) bool {
	if wantCompany != 0 && companyID != wantCompany {
		return false
	}
	if len(data) < len(prefix) {
		return false
	}
	for i := range prefix {
		if data[i] != prefix[i] {
			return false
		}
	}
	return true
}
