// Package hardware contains the Raspberry Pi adapters behind the service
// capability interfaces: the libcamera still camera, the SoC thermal zone
// sensor and the sysfs PWM fan output.
package hardware

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"cosmicam"
)

// Full sensor resolution of the HQ camera module.
const (
	defaultWidth  = 4056
	defaultHeight = 3040
)

// LibcameraStill captures frames by shelling out to libcamera-still, the
// same tool the capture cron used before this service existed.
type LibcameraStill struct {
	Binary string
	Width  int
	Height int
}

func NewLibcameraStill() *LibcameraStill {
	return &LibcameraStill{Binary: "libcamera-still", Width: defaultWidth, Height: defaultHeight}
}

// Capture acquires one frame with the profile's settings and returns the
// encoded bytes. The context bounds the whole subprocess run.
func (c *LibcameraStill) Capture(ctx context.Context, profile cosmicam.CaptureProfile) ([]byte, error) {
	tmp, err := os.CreateTemp("", "cosmicam-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cosmicam.ErrCaptureIO, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	cmd := exec.CommandContext(ctx, c.Binary, c.buildArgs(tmpPath, profile)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classifyCaptureError(ctx, err, stderr.String())
	}

	frame, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read frame: %v", cosmicam.ErrCaptureIO, err)
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", cosmicam.ErrCaptureIO)
	}
	return frame, nil
}

// buildArgs mirrors the knobs the capture profiles carry. Zero shutter/gain
// leave the camera in auto mode; brightness 0 is a valid explicit value.
func (c *LibcameraStill) buildArgs(outPath string, p cosmicam.CaptureProfile) []string {
	args := []string{
		"-o", outPath,
		"--width", strconv.Itoa(c.Width),
		"--height", strconv.Itoa(c.Height),
		"--nopreview",
	}
	if p.ShutterMicros > 0 {
		args = append(args, "--shutter", strconv.FormatInt(p.ShutterMicros, 10))
	}
	if p.Gain > 0 {
		args = append(args, "--gain", strconv.FormatFloat(p.Gain, 'f', -1, 64))
	}
	args = append(args, "--brightness", strconv.FormatFloat(p.Brightness, 'f', -1, 64))
	if p.Contrast > 0 {
		args = append(args, "--contrast", strconv.FormatFloat(p.Contrast, 'f', -1, 64))
	}
	return args
}

func classifyCaptureError(ctx context.Context, err error, stderr string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", cosmicam.ErrCaptureTimeout, err)
	}
	if strings.Contains(strings.ToLower(stderr), "busy") {
		return fmt.Errorf("%w: %s", cosmicam.ErrDeviceBusy, strings.TrimSpace(stderr))
	}
	if stderr != "" {
		return fmt.Errorf("%w: %v: %s", cosmicam.ErrCaptureIO, err, strings.TrimSpace(stderr))
	}
	return fmt.Errorf("%w: %v", cosmicam.ErrCaptureIO, err)
}
