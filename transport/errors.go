// Package transport owns the single UDP endpoint, demultiplexes inbound
// datagrams to per-peer reliability.Stream instances, and exposes the
// blocking send_to/recv_from API spec.md §4.4 describes. It is grounded in
// the katzenpost client's connection manager (client2/connection.go — a
// single socket, a background reader, per-peer dispatch) and in
// sockatz/common/conn.go's net.PacketConn-shaped wrapper around a worker
// goroutine.
package transport

import "fmt"

// InvalidAddressError is returned by SendTo when peer is nil — API misuse,
// fail-fast per spec.md §7.
type InvalidAddressError struct{}

func (e *InvalidAddressError) Error() string {
	return "transport: invalid (nil) peer address"
}

// NullDataError is returned by SendTo when data is empty — API misuse,
// fail-fast per spec.md §7.
type NullDataError struct{}

func (e *NullDataError) Error() string {
	return "transport: nil/empty data"
}

// SocketError wraps a non-timeout error from the UDP socket. New and Bind
// return it when the socket cannot be opened, and Close returns it when
// releasing the socket fails; read errors seen by the reader goroutine are
// logged, not returned.
type SocketError struct {
	Err error
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("transport: socket error: %v", e.Err)
}

func (e *SocketError) Unwrap() error {
	return e.Err
}
