package netcore

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// isPeerGoneError reports whether err is one of the transport-peer-gone
// conditions of spec.md §7.1 (aborted/reset/refused/shutdown) that must be
// handled with a silent Disconnect rather than surfaced through OnError.
func isPeerGoneError(err error) bool {
	if err == nil || err == io.EOF {
		return true
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	if errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ESHUTDOWN) {
		return true
	}
	// Fallback string match: some platforms/wrappers don't preserve the
	// underlying syscall.Errno through errors.Is (e.g. poll.ErrNetClosing
	// variants before it was exported as net.ErrClosed).
	msg := err.Error()
	for _, needle := range []string{
		"use of closed network connection",
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"socket is not connected",
		"operation was canceled",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
