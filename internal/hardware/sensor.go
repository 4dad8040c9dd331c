package hardware

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const defaultThermalZone = "/sys/class/thermal/thermal_zone0/temp"

// ZoneSensor reads the SoC temperature from the kernel thermal zone. The
// file reports millidegrees Celsius.
type ZoneSensor struct {
	Path string
}

func NewZoneSensor() *ZoneSensor {
	return &ZoneSensor{Path: defaultThermalZone}
}

func (s *ZoneSensor) Read(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return 0, fmt.Errorf("read thermal zone: %w", err)
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse thermal zone value %q: %w", strings.TrimSpace(string(raw)), err)
	}
	return float64(milli) / 1000, nil
}
