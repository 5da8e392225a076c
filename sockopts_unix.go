//go:build linux || darwin || freebsd || netbsd || openbsd

package netcore

import (
	"net"
	"syscall"
	"time"

	"github.com/pion/logging"
	"golang.org/x/sys/unix"
)

// applySocketOptions installs the configuration in spec.md §6 onto a
// freshly-connected socket. TCP_NODELAY and the OS send/receive buffer
// sizes are reachable through the standard library; per-probe keep-alive
// tuning and SO_LINGER are not (net.TCPConn only exposes a single
// keep-alive boolean and period), so those go through SyscallConn and a
// raw setsockopt via golang.org/x/sys/unix, the same path nats-server
// uses for the same reason.
func applySocketOptions(conn net.Conn, opts SocketOptions, log logging.LeveledLogger) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}

	if opts.NoDelay {
		_ = tcp.SetNoDelay(true)
	}
	if opts.ReceiveBufferSize > 0 {
		_ = tcp.SetReadBuffer(opts.ReceiveBufferSize)
	}
	if opts.SendBufferSize > 0 {
		_ = tcp.SetWriteBuffer(opts.SendBufferSize)
	}
	if opts.KeepAlive {
		_ = tcp.SetKeepAlive(true)
		if opts.KeepAliveTime > 0 {
			_ = tcp.SetKeepAlivePeriod(opts.KeepAliveTime)
		}
	}

	raw, err := tcp.SyscallConn()
	if err != nil {
		log.Debugf("netcore: SyscallConn unavailable for socket tuning: %v", err)
		return
	}

	ctrlErr := raw.Control(func(fd uintptr) {
		if opts.KeepAlive {
			if opts.KeepAliveTime > 0 {
				setKeepAliveProbe(fd, unix.TCP_KEEPIDLE, opts.KeepAliveTime, log)
			}
			if opts.KeepAliveInterval > 0 {
				setKeepAliveProbe(fd, unix.TCP_KEEPINTVL, opts.KeepAliveInterval, log)
			}
			if opts.KeepAliveRetryCount > 0 {
				if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, opts.KeepAliveRetryCount); e != nil {
					log.Debugf("netcore: TCP_KEEPCNT: %v", e)
				}
			}
		}
		if opts.LingerEnabled {
			linger := &unix.Linger{Onoff: 1, Linger: int32(opts.Linger / time.Second)}
			if e := unix.SetsockoptLinger(int(fd), unix.SOL_SOCKET, unix.SO_LINGER, linger); e != nil {
				log.Debugf("netcore: SO_LINGER: %v", e)
			}
		}
	})
	if ctrlErr != nil {
		log.Debugf("netcore: socket control failed: %v", ctrlErr)
	}
}

func setKeepAliveProbe(fd uintptr, opt int, d time.Duration, log logging.LeveledLogger) {
	secs := int(d / time.Second)
	if secs <= 0 {
		secs = 1
	}
	if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, opt, secs); err != nil {
		log.Debugf("netcore: keepalive probe setsockopt(%d): %v", opt, err)
	}
}

// listenerControl sets listener-level options (SO_REUSEADDR) before bind
// via a net.ListenConfig.Control callback.
func listenerControl(opts SocketOptions) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		return c.Control(func(fd uintptr) {
			if opts.ReuseAddress && !opts.ExclusiveAddressUse {
				_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}
		})
	}
}
