package pipeline

import (
	"fmt"
)

// Direction is the outcome of one controller update.
type Direction int

const (
	Hold Direction = iota
	Grow
	Shrink
)

func (d Direction) String() string {
	switch d {
	case Grow:
		return "grow"
	case Shrink:
		return "shrink"
	default:
		return "hold"
	}
}

// BlockSizeConfig bounds and tunes the block size controller. Sizes are in
// capture samples, thresholds in samples of backlog change per tick.
type BlockSizeConfig struct {
	Initial         int
	Min             int
	Max             int
	Step            int
	GrowThreshold   int
	ShrinkThreshold int
}

// DefaultBlockSizeConfig returns the stock controller tuning.
func DefaultBlockSizeConfig() BlockSizeConfig {
	return BlockSizeConfig{
		Initial:         512,
		Min:             256,
		Max:             16384,
		Step:            128,
		GrowThreshold:   8192,
		ShrinkThreshold: 1024,
	}
}

// Validate checks the bounds are consistent.
func (c BlockSizeConfig) Validate() error {
	switch {
	case c.Min < 1:
		return fmt.Errorf("minimum block size must be positive, got %d", c.Min)
	case c.Max < c.Min:
		return fmt.Errorf("maximum block size %d below minimum %d", c.Max, c.Min)
	case c.Initial < c.Min || c.Initial > c.Max:
		return fmt.Errorf("initial block size %d outside [%d, %d]", c.Initial, c.Min, c.Max)
	case c.Step < 1:
		return fmt.Errorf("block size step must be positive, got %d", c.Step)
	case c.GrowThreshold < 1 || c.ShrinkThreshold < 1:
		return fmt.Errorf("thresholds must be positive, got grow %d shrink %d", c.GrowThreshold, c.ShrinkThreshold)
	}
	return nil
}

// BlockSizeController is a two-threshold hysteresis loop on the capture
// backlog. A backlog that grew by at least GrowThreshold since the last
// update means analysis is falling behind, so more audio is pulled per
// tick; one that shrank by at least ShrinkThreshold means it is comfortably
// ahead, so less is pulled to cut latency. Not safe for concurrent use.
type BlockSizeController struct {
	cfg         BlockSizeConfig
	size        int
	lastBacklog int
}

// NewBlockSizeController validates cfg and starts at cfg.Initial with an
// assumed empty backlog.
func NewBlockSizeController(cfg BlockSizeConfig) (*BlockSizeController, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BlockSizeController{cfg: cfg, size: cfg.Initial}, nil
}

// Size returns the current block size.
func (c *BlockSizeController) Size() int {
	return c.size
}

// Config returns the controller tuning.
func (c *BlockSizeController) Config() BlockSizeConfig {
	return c.cfg
}

// Update feeds the current backlog and returns the block size for the next
// tick and whether it changed.
func (c *BlockSizeController) Update(backlog int) (int, Direction) {
	delta := backlog - c.lastBacklog
	c.lastBacklog = backlog

	prev := c.size
	switch {
	case delta >= c.cfg.GrowThreshold:
		c.size = min(c.size+c.cfg.Step, c.cfg.Max)
	case delta <= -c.cfg.ShrinkThreshold:
		c.size = max(c.size-c.cfg.Step, c.cfg.Min)
	}

	switch {
	case c.size > prev:
		return c.size, Grow
	case c.size < prev:
		return c.size, Shrink
	}
	return c.size, Hold
}

// Reset returns to the initial size and forgets the backlog history.
func (c *BlockSizeController) Reset() {
	c.size = c.cfg.Initial
	c.lastBacklog = 0
}
