package model

import "time"

// PollLimits bounds the caller-supplied poll settings. Callers never get
// to pick values outside these ranges.
type PollLimits struct {
	DefaultTimeoutSec int `mapstructure:"default_timeout_sec" yaml:"default_timeout_sec"`
	MinTimeoutSec     int `mapstructure:"min_timeout_sec" yaml:"min_timeout_sec"`
	MaxTimeoutSec     int `mapstructure:"max_timeout_sec" yaml:"max_timeout_sec"`

	DefaultIntervalSec int `mapstructure:"default_interval_sec" yaml:"default_interval_sec"`
	MinIntervalSec     int `mapstructure:"min_interval_sec" yaml:"min_interval_sec"`
	MaxIntervalSec     int `mapstructure:"max_interval_sec" yaml:"max_interval_sec"`

	DefaultListPerFolder int `mapstructure:"default_list_per_folder" yaml:"default_list_per_folder"`
	DefaultPollPerFolder int `mapstructure:"default_poll_per_folder" yaml:"default_poll_per_folder"`
	MaxPerFolder         int `mapstructure:"max_per_folder" yaml:"max_per_folder"`
}

// DefaultPollLimits returns the built-in bounds.
func DefaultPollLimits() PollLimits {
	return PollLimits{
		DefaultTimeoutSec:    60,
		MinTimeoutSec:        5,
		MaxTimeoutSec:        1800,
		DefaultIntervalSec:   5,
		MinIntervalSec:       2,
		MaxIntervalSec:       60,
		DefaultListPerFolder: 100,
		DefaultPollPerFolder: 20,
		MaxPerFolder:         500,
	}
}

// normalize repairs a configuration whose bounds are missing or inverted.
func (l PollLimits) normalize() PollLimits {
	d := DefaultPollLimits()
	if l.MinTimeoutSec < 1 {
		l.MinTimeoutSec = d.MinTimeoutSec
	}
	if l.MaxTimeoutSec < l.MinTimeoutSec {
		l.MaxTimeoutSec = l.MinTimeoutSec
	}
	if l.MinIntervalSec < 1 {
		l.MinIntervalSec = d.MinIntervalSec
	}
	if l.MaxIntervalSec < l.MinIntervalSec {
		l.MaxIntervalSec = l.MinIntervalSec
	}
	if l.MaxPerFolder < 1 {
		l.MaxPerFolder = d.MaxPerFolder
	}
	l.DefaultTimeoutSec = clampInt(l.DefaultTimeoutSec, l.MinTimeoutSec, l.MaxTimeoutSec)
	l.DefaultIntervalSec = clampInt(l.DefaultIntervalSec, l.MinIntervalSec, l.MaxIntervalSec)
	l.DefaultListPerFolder = clampInt(l.DefaultListPerFolder, 1, l.MaxPerFolder)
	l.DefaultPollPerFolder = clampInt(l.DefaultPollPerFolder, 1, l.MaxPerFolder)
	return l
}

// Timeout clamps a requested timeout in seconds. Zero or negative selects
// the default.
func (l PollLimits) Timeout(sec int) time.Duration {
	l = l.normalize()
	if sec <= 0 {
		sec = l.DefaultTimeoutSec
	}
	return time.Duration(clampInt(sec, l.MinTimeoutSec, l.MaxTimeoutSec)) * time.Second
}

// Interval clamps a requested poll interval in seconds. Zero or negative
// selects the default.
func (l PollLimits) Interval(sec int) time.Duration {
	l = l.normalize()
	if sec <= 0 {
		sec = l.DefaultIntervalSec
	}
	return time.Duration(clampInt(sec, l.MinIntervalSec, l.MaxIntervalSec)) * time.Second
}

// ListPerFolder clamps the per-folder cap for listing mode.
func (l PollLimits) ListPerFolder(n int) int {
	l = l.normalize()
	if n <= 0 {
		n = l.DefaultListPerFolder
	}
	return clampInt(n, 1, l.MaxPerFolder)
}

// PollPerFolder clamps the per-folder cap for poll mode.
func (l PollLimits) PollPerFolder(n int) int {
	l = l.normalize()
	if n <= 0 {
		n = l.DefaultPollPerFolder
	}
	return clampInt(n, 1, l.MaxPerFolder)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
