package main

import (
	"inputviz/internal/config"
	"inputviz/internal/logging"
)

func newLogger(c config.LoggingConfig) (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	lc.Component = "inputvizd"
	lc.LogKeys = c.LogKeys
	lc.Compress = c.Compress
	if c.Level != "" {
		level, err := logging.ParseLevel(c.Level)
		if err != nil {
			return nil, err
		}
		lc.Level = level
	}
	if c.Format != "" {
		format, err := logging.ParseFormat(c.Format)
		if err != nil {
			return nil, err
		}
		lc.Format = format
	}
	if c.Output != "" {
		lc.Output = c.Output
	}
	if c.FilePath != "" {
		lc.FilePath = c.FilePath
	}
	if c.MaxSizeMB > 0 {
		lc.MaxSize = int64(c.MaxSizeMB)
	}
	if c.MaxBackups > 0 {
		lc.MaxBackups = c.MaxBackups
	}
	if c.MaxAgeDays > 0 {
		lc.MaxAge = c.MaxAgeDays
	}
	return logging.New(lc)
}
