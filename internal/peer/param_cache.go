package peer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/artishokq/SmartSwim-sub001/internal/link"
)

type parameterCacheData struct {
	PoolSize      float64   `json:"pool_size"`
	SwimmingStyle int       `json:"swimming_style"`
	TotalMeters   int       `json:"total_meters"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ParameterCache keeps the last swim parameters the companion pushed, so the
// watch can answer pulls and start a free swim while disconnected. It is
// backed by a small JSON file.
type ParameterCache struct {
	mu       sync.RWMutex
	filePath string
	data     parameterCacheData
	logger   zerolog.Logger
}

// NewParameterCache loads filePath if it exists. An empty path keeps the
// cache in memory only.
func NewParameterCache(filePath string, logger zerolog.Logger) *ParameterCache {
	c := &ParameterCache{
		filePath: filePath,
		logger:   logger.With().Str("component", "ParameterCache").Logger(),
	}
	c.load()
	return c
}

// Get returns the cached parameters, or the defaults before any push.
func (c *ParameterCache) Get() link.Parameters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data.PoolSize <= 0 {
		return link.DefaultParameters
	}
	return link.Parameters{
		PoolSize:      c.data.PoolSize,
		SwimmingStyle: c.data.SwimmingStyle,
		TotalMeters:   c.data.TotalMeters,
	}
}

func (c *ParameterCache) PoolLength() float64 {
	return c.Get().PoolSize
}

// Set replaces the cached parameters and writes them through to disk.
func (c *ParameterCache) Set(p link.Parameters) error {
	c.mu.Lock()
	c.data = parameterCacheData{
		PoolSize:      p.PoolSize,
		SwimmingStyle: p.SwimmingStyle,
		TotalMeters:   p.TotalMeters,
		UpdatedAt:     time.Now().UTC(),
	}
	data := c.data
	c.mu.Unlock()

	c.logger.Info().
		Float64("pool_size", p.PoolSize).
		Int("swimming_style", p.SwimmingStyle).
		Int("total_meters", p.TotalMeters).
		Msg("parameters updated")
	return c.save(data)
}

func (c *ParameterCache) load() {
	if c.filePath == "" {
		return
	}
	raw, err := os.ReadFile(c.filePath)
	if err != nil {
		c.logger.Debug().Str("path", c.filePath).Msg("no cached parameters")
		return
	}
	var data parameterCacheData
	if err := json.Unmarshal(raw, &data); err != nil {
		c.logger.Warn().Err(err).Str("path", c.filePath).Msg("cached parameters unreadable, using defaults")
		return
	}
	c.data = data
	c.logger.Info().Str("path", c.filePath).Float64("pool_size", data.PoolSize).Msg("cached parameters loaded")
}

func (c *ParameterCache) save(data parameterCacheData) error {
	if c.filePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.filePath), 0755); err != nil {
		c.logger.Error().Err(err).Msg("save mkdir failed")
		return err
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.filePath, raw, 0644); err != nil {
		c.logger.Error().Err(err).Str("path", c.filePath).Msg("save failed")
		return err
	}
	return nil
}
