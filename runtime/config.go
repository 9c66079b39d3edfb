package runtime

import (
	"time"

	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/config"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rendezvous"
	"github.com/Minecraftian14/RobotsMakingIcecream/coreengine/rlog"
)

// Config configures a Runtime at construction. Every field has a usable
// zero value; New fills in DefaultConfig's values for anything left unset,
// except WorkerQueueDepth, whose zero value is kept and gives an unbuffered
// queue.
type Config struct {
	Logger rlog.Logger

	// WorkerPoolSize bounds concurrent inbound method execution. 1
	// preserves FIFO completion order, matching the dispatcher's default.
	WorkerPoolSize int
	// WorkerQueueDepth bounds how many invocation frames may be queued
	// ahead of the workers before Submit blocks.
	WorkerQueueDepth int

	Rendezvous rendezvous.Config

	// ShutdownTimeout bounds how long ShutdownExecutor waits for queued
	// work to drain before it returns a ShutdownError; the work itself is
	// not stopped.
	ShutdownTimeout time.Duration
}

// DefaultConfig matches CoreConfig's defaults in spirit:
// a single worker, a modest queue, and a five-second graceful window.
func DefaultConfig() Config {
	return Config{
		WorkerPoolSize:   1,
		WorkerQueueDepth: 64,
		Rendezvous:       rendezvous.DefaultConfig(),
		ShutdownTimeout:  5 * time.Second,
	}
}

// FromCoreConfig builds a Config from a config.CoreConfig, the shape an
// application loads from its environment or a config file.
func FromCoreConfig(cc *config.CoreConfig) Config {
	sweep, pendingTTL, lateTTL, shutdown, _ := cc.Durations()
	return Config{
		WorkerPoolSize:   cc.WorkerPoolSize,
		WorkerQueueDepth: cc.WorkerQueueDepth,
		Rendezvous: rendezvous.Config{
			SweepInterval: sweep,
			PendingTTL:    pendingTTL,
			LateTTL:       lateTTL,
		},
		ShutdownTimeout: shutdown,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WorkerPoolSize < 1 {
		c.WorkerPoolSize = d.WorkerPoolSize
	}
	if c.WorkerQueueDepth < 0 {
		c.WorkerQueueDepth = d.WorkerQueueDepth
	}
	if c.Rendezvous.SweepInterval <= 0 {
		c.Rendezvous = d.Rendezvous
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}
