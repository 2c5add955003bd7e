//go:build !linux

package server

import "net"

// listen falls back to the net package, which ignores backlog.
func listen(addr string, _ int) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
