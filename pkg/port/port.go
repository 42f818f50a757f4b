// Package port implements the Port Allocator of spec §4.6: reserving TCP
// port numbers against the Registry so that multiple supervised processes
// never get handed the same port. It deliberately uses only the standard
// library's net package — see DESIGN.md for why no pack dependency fits
// "ask the kernel for a free port" better than net.Listen.
package port

import (
	"net"
	"strconv"

	"github.com/sentinelhq/sentinel/pkg/errs"
	"github.com/sentinelhq/sentinel/pkg/registry"
	"github.com/sentinelhq/sentinel/pkg/store"
)

// Allocator reserves and frees port numbers through the Registry.
type Allocator struct {
	Registry *registry.Registry
}

// New returns a port Allocator over reg.
func New(reg *registry.Registry) *Allocator {
	return &Allocator{Registry: reg}
}

// Allocate reserves port (or, when port is 0, asks the kernel for a free
// one via net.Listen) under name, returning the reserved port number.
func (a *Allocator) Allocate(port int, name string) (int, error) {
	if port == 0 {
		free, err := findFreePort()
		if err != nil {
			return 0, errs.IOFailure("tcp:0", err)
		}
		port = free
	}
	if err := a.Registry.AddPort(port, name); err != nil {
		return 0, err
	}
	return port, nil
}

// Free releases a port reservation.
func (a *Allocator) Free(port int) error {
	return a.Registry.RemovePort(port)
}

// List returns every reserved port, sorted ascending (Registry already
// keeps cat.Ports sorted by AddPort).
func (a *Allocator) List() []store.PortRecord {
	return a.Registry.Snapshot().Ports
}

// findFreePort binds an ephemeral listener just long enough to learn which
// port the kernel handed out, then releases it — the standard trick for
// "give me an unused TCP port" with no third-party equivalent in the pack.
func findFreePort() (int, error) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, errs.IOFailure("tcp:0", nil)
	}
	return addr.Port, nil
}

// ParsePort is a small convenience used by the CLI layer to validate a
// --port flag before handing it to Allocate.
func ParsePort(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 65535 {
		return 0, errs.InvalidInput("port must be between 0 and 65535")
	}
	return n, nil
}
