package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// 10 kHz, the frequency the fan was driven at before.
const defaultPeriodNanos = 100_000

// SysfsPWM drives a hardware PWM channel through the kernel sysfs
// interface. The channel is exported and configured once at construction.
type SysfsPWM struct {
	dir    string
	period int64
}

// NewSysfsPWM exports channel on the given pwmchip and programs the period.
func NewSysfsPWM(chip string, channel int) (*SysfsPWM, error) {
	chipDir := filepath.Join("/sys/class/pwm", chip)
	dir := filepath.Join(chipDir, fmt.Sprintf("pwm%d", channel))

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := writeSysfs(filepath.Join(chipDir, "export"), strconv.Itoa(channel)); err != nil {
			return nil, fmt.Errorf("export pwm channel: %w", err)
		}
	}

	p := &SysfsPWM{dir: dir, period: defaultPeriodNanos}
	if err := writeSysfs(filepath.Join(dir, "period"), strconv.FormatInt(p.period, 10)); err != nil {
		return nil, fmt.Errorf("set pwm period: %w", err)
	}
	if err := writeSysfs(filepath.Join(dir, "enable"), "1"); err != nil {
		return nil, fmt.Errorf("enable pwm: %w", err)
	}
	return p, nil
}

// SetDuty programs the duty cycle as a percentage of the period.
func (p *SysfsPWM) SetDuty(percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	duty := p.period * int64(percent) / 100
	if err := writeSysfs(filepath.Join(p.dir, "duty_cycle"), strconv.FormatInt(duty, 10)); err != nil {
		return fmt.Errorf("set duty cycle: %w", err)
	}
	return nil
}

func writeSysfs(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}
