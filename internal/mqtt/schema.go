package mqtt

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed telemetry.schema.json
var telemetrySchemaJSON string

var (
	telemetrySchemaOnce sync.Once
	telemetrySchema     *gojsonschema.Schema
	telemetrySchemaErr  error
)

// validateTelemetryJSON checks payload against the telemetry schema and
// returns the first violation.
func validateTelemetryJSON(payload []byte) error {
	telemetrySchemaOnce.Do(func() {
		telemetrySchema, telemetrySchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(telemetrySchemaJSON))
	})
	if telemetrySchemaErr != nil {
		return fmt.Errorf("load telemetry schema: %w", telemetrySchemaErr)
	}

	res, err := telemetrySchema.Validate(gojsonschema.NewStringLoader(string(payload)))
	if err != nil {
		return err
	}
	if !res.Valid() {
		return fmt.Errorf("%s", res.Errors()[0])
	}
	return nil
}
