package netcore

import "time"

// SocketOptions is the socket configuration surface every endpoint in this
// package exposes (spec §6). Zero values mean "leave the OS default" except
// where noted.
type SocketOptions struct {
	// DualMode enables IPv4/IPv6 dual-stack listening sockets.
	DualMode bool
	// ReuseAddress sets SO_REUSEADDR before bind.
	ReuseAddress bool
	// ExclusiveAddressUse is the Windows SO_EXCLUSIVEADDRUSE analogue; on
	// POSIX systems it is honored by refusing to also set ReuseAddress.
	ExclusiveAddressUse bool

	// KeepAlive enables TCP keep-alive probing.
	KeepAlive bool
	// KeepAliveTime is the idle duration before the first probe.
	KeepAliveTime time.Duration
	// KeepAliveInterval is the duration between probes.
	KeepAliveInterval time.Duration
	// KeepAliveRetryCount is the number of unanswered probes before the
	// connection is considered dead.
	KeepAliveRetryCount int

	// NoDelay disables Nagle's algorithm (TCP_NODELAY).
	NoDelay bool

	// ReceiveBufferSize / SendBufferSize set the OS socket buffer sizes
	// (SO_RCVBUF / SO_SNDBUF). 0 leaves the OS default.
	ReceiveBufferSize int
	SendBufferSize    int

	// ReceiveBufferLimit / SendBufferLimit cap the *application-level*
	// buffers (Buffer in buffer.go), not the OS socket buffers. 0 means
	// unlimited. Exceeding the receive limit surfaces ErrNoBufferSpace and
	// disconnects; exceeding the send limit rejects the append.
	ReceiveBufferLimit int
	SendBufferLimit    int

	// Linger, when LingerEnabled is true, sets SO_LINGER to this duration
	// (rounded down to whole seconds) on close.
	LingerEnabled bool
	Linger        time.Duration
}

// DefaultSocketOptions returns the baseline configuration. It is never
// mutated in place; callers copy the struct and change fields.
func DefaultSocketOptions() SocketOptions {
	return SocketOptions{
		DualMode:            false,
		ReuseAddress:        true,
		KeepAlive:           true,
		KeepAliveTime:       2 * time.Hour,
		KeepAliveInterval:   75 * time.Second,
		KeepAliveRetryCount: 9,
		NoDelay:             true,
		ReceiveBufferLimit:  0,
		SendBufferLimit:     0,
	}
}

const defaultReceiveBufferSize = 8192

// receiveBufferLimitForSession returns the effective cap, treating 0 as
// unlimited by returning -1.
func receiveBufferLimitForSession(opts SocketOptions) int {
	if opts.ReceiveBufferLimit <= 0 {
		return -1
	}
	return opts.ReceiveBufferLimit
}

func sendBufferLimitForSession(opts SocketOptions) int {
	if opts.SendBufferLimit <= 0 {
		return -1
	}
	return opts.SendBufferLimit
}
