package recorder

import (
	"fmt"
	"time"
)

const (
	defaultQueueSize  = 4096
	defaultBufferSize = 64 * 1024
	defaultFilePrefix = "liquidations"
)

var defaultFlushInterval = time.Second

// Config controls the JSON-Lines writer behavior.
type Config struct {
	Dir           string
	QueueSize     int
	BufferSize    int
	FilePrefix    string
	FlushInterval time.Duration
}

// DefaultConfig returns a baseline configuration for the writer.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:           dir,
		QueueSize:     defaultQueueSize,
		BufferSize:    defaultBufferSize,
		FilePrefix:    defaultFilePrefix,
		FlushInterval: defaultFlushInterval,
	}
}

func (c Config) withDefaults() Config {
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("invalid recorder config: Dir is empty")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("invalid recorder config: QueueSize must be > 0")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("invalid recorder config: BufferSize must be > 0")
	}
	if c.FlushInterval < 0 {
		return fmt.Errorf("invalid recorder config: FlushInterval must be >= 0")
	}
	return nil
}
