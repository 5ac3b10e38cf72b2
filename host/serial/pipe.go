package serial

import "net"

// pipePort adapts one end of a net.Pipe to Port
type pipePort struct {
	net.Conn
}

func (pipePort) Flush() error { return nil }

// Pipe returns two connected in-memory ports. Writes on one end block until
// the other end reads them.
func Pipe() (Port, Port) {
	a, b := net.Pipe()
	return pipePort{a}, pipePort{b}
}
