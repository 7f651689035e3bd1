// Package coreenc is the Controller facade over the encode/mux pipeline:
// lifecycle (create, encode_frame, write_audio, finalize, destroy) and
// deferred error state, following a construct-subcomponents-then-tear-
// down-idempotently plugin lifecycle trimmed to this module's five calls.
package coreenc

import (
	"fmt"
	"os"

	"github.com/nvstream/coreenc/pkg/nvenc"

	"gopkg.in/yaml.v3"
)

// VideoCodec selects the hardware encoder's output codec.
type VideoCodec int

const (
	CodecH264 VideoCodec = iota
	CodecHEVC
)

// RateControlMode selects CBR or VBR.
type RateControlMode int

const (
	RateControlCBR RateControlMode = iota
	RateControlVBR
)

// QualityPreset is the coarse quality/speed knob.
type QualityPreset int

const (
	QualityLow QualityPreset = iota
	QualityMedium
	QualityHigh
)

// PixelFormat names the input surface's color layout.
type PixelFormat int

const (
	FormatARGB PixelFormat = iota
	FormatNV12
)

// SessionConfig is the session's immutable configuration, set once at
// Create and never mutated afterward.
type SessionConfig struct {
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	FPS           int    `yaml:"fps"`
	Codec         VideoCodec `yaml:"codec"`
	RateControl   RateControlMode `yaml:"rateControl"`
	TargetBitrate int    `yaml:"targetBitrateBps"`
	MaxBitrate    int    `yaml:"maxBitrateBps"`
	Quality       QualityPreset `yaml:"quality"`
	InputFormat   PixelFormat   `yaml:"inputFormat"`
	FastPreset    bool   `yaml:"fastPreset" default:"false"`
	HEVCAsyncOptIn bool  `yaml:"hevcAsyncOptIn" default:"false"`
	OutputPath    string `yaml:"outputPath"`
}

// Validate enforces the session's invariants: positive dimensions/fps, and
// max >= target when VBR.
func (c SessionConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 || c.FPS <= 0 {
		return fmt.Errorf("invalid session config: width=%d height=%d fps=%d", c.Width, c.Height, c.FPS)
	}
	if c.RateControl == RateControlVBR && c.MaxBitrate < c.TargetBitrate {
		return fmt.Errorf("invalid session config: max bitrate %d below target %d under VBR", c.MaxBitrate, c.TargetBitrate)
	}
	if c.OutputPath == "" {
		return fmt.Errorf("invalid session config: empty output path")
	}
	return nil
}

// LoadSessionConfig reads a YAML session config from path at startup.
func LoadSessionConfig(path string) (SessionConfig, error) {
	var c SessionConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read session config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse session config: %w", err)
	}
	return c, nil
}

func (c SessionConfig) toNvencParams() nvenc.InitParams {
	codec := nvenc.H264
	if c.Codec == CodecHEVC {
		codec = nvenc.HEVC
	}
	rc := nvenc.CBR
	if c.RateControl == RateControlVBR {
		rc = nvenc.VBR
	}
	quality := nvenc.QualityMedium
	switch c.Quality {
	case QualityLow:
		quality = nvenc.QualityLow
	case QualityHigh:
		quality = nvenc.QualityHigh
	}
	format := nvenc.FormatARGB
	if c.InputFormat == FormatNV12 {
		format = nvenc.FormatNV12
	}
	return nvenc.InitParams{
		Width: c.Width, Height: c.Height, FPS: c.FPS,
		Codec: codec, RateControl: rc,
		TargetBitrate: c.TargetBitrate, MaxBitrate: c.MaxBitrate,
		Quality: quality, FastPreset: c.FastPreset, HEVCAsyncOptIn: c.HEVCAsyncOptIn,
		InputFormat: format,
	}
}
