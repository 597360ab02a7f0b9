package tchannel2

import "time"

// Config carries every tunable of a Channel and the Connections it owns
// (§4.8). NewConfig returns the reference defaults; callers override
// fields directly or via the With* functional options before passing a
// Config to NewChannel.
type Config struct {
	// ServerAddr is this node's own "host:port", advertised to peers in
	// the Init handshake and used to reject self-peering.
	ServerAddr string

	// ProcessName is the free-form identifier sent as the Init body's
	// process_name.
	ProcessName string

	// DialTimeout bounds how long an outbound connection attempt may
	// take.
	DialTimeout time.Duration

	// DefaultCallTimeout is used by Channel.Send when the caller's
	// CallOptions.Timeout is zero. Per Open Question (b), the reference
	// default of 1ms is rejected in favor of an explicit 5000ms; a ttl of
	// zero on the wire is an error rather than a request for this default.
	DefaultCallTimeout time.Duration

	// TimeoutCheckInterval is the base period of the sweeper timer;
	// TimeoutFuzz is added as a uniform random jitter in
	// [-fuzz/2, +fuzz/2] (§4.4).
	TimeoutCheckInterval time.Duration
	TimeoutFuzz          time.Duration

	// ServerOpTimeout bounds how long an inbound operation may sit in
	// inOps before the sweeper prunes it without invoking a sink (§4.4
	// step 4).
	ServerOpTimeout time.Duration

	// ChecksumType is the algorithm this node uses when it originates a
	// CallRequest. The default is ChecksumNone; a caller opts in to
	// integrity checking explicitly.
	ChecksumType ChecksumType

	Logger Logger
}

// NewConfig returns a Config populated with the reference defaults.
func NewConfig() *Config {
	return &Config{
		DialTimeout:          5 * time.Second,
		DefaultCallTimeout:   5000 * time.Millisecond,
		TimeoutCheckInterval: 1000 * time.Millisecond,
		TimeoutFuzz:          100 * time.Millisecond,
		ServerOpTimeout:      60 * time.Second,
		ChecksumType:         ChecksumNone,
		Logger:               nopLogger{},
	}
}

// WithLogger sets the Logger used by the channel and its connections.
func (c *Config) WithLogger(l Logger) *Config {
	c.Logger = l
	return c
}

// WithChecksumType sets the checksum algorithm this node uses when
// originating a CallRequest.
func (c *Config) WithChecksumType(t ChecksumType) *Config {
	c.ChecksumType = t
	return c
}

// WithDefaultCallTimeout overrides the ttl applied when a caller leaves
// CallOptions.Timeout at zero.
func (c *Config) WithDefaultCallTimeout(d time.Duration) *Config {
	c.DefaultCallTimeout = d
	return c
}

func (c *Config) normalize() {
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
	if c.TimeoutCheckInterval <= 0 {
		c.TimeoutCheckInterval = 1000 * time.Millisecond
	}
	if c.DefaultCallTimeout <= 0 {
		c.DefaultCallTimeout = 5000 * time.Millisecond
	}
	if c.ServerOpTimeout <= 0 {
		c.ServerOpTimeout = 60 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
}
