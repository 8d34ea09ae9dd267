package printer

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// NetworkPrinter represents a network-connected thermal printer.
// Each job opens its own TCP connection to the raw port.
type NetworkPrinter struct {
	id       string
	name     string
	address  string
	port     int
	codePage string

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	mu sync.Mutex
}

// NewNetworkPrinter creates a new network printer
func NewNetworkPrinter(id, name, address string, port int, codePage string) *NetworkPrinter {
	return &NetworkPrinter{
		id:           id,
		name:         name,
		address:      address,
		port:         port,
		codePage:     codePage,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// ID returns the printer ID
func (p *NetworkPrinter) ID() string {
	return p.id
}

// Name returns the printer name
func (p *NetworkPrinter) Name() string {
	return p.name
}

// Type returns the printer type
func (p *NetworkPrinter) Type() string {
	return "network"
}

// CodePage returns the character set the printer expects
func (p *NetworkPrinter) CodePage() string {
	return p.codePage
}

func (p *NetworkPrinter) addr() string {
	return net.JoinHostPort(p.address, fmt.Sprint(p.port))
}

// Status returns the printer status
func (p *NetworkPrinter) Status() string {
	conn, err := net.DialTimeout("tcp", p.addr(), 2*time.Second)
	if err != nil {
		return "offline"
	}
	conn.Close()
	return "online"
}

// Print sends data to the printer
func (p *NetworkPrinter) Print(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := net.DialTimeout("tcp", p.addr(), p.DialTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to printer: %w", err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(p.WriteTimeout))

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("failed to send data to printer: %w", err)
	}

	return nil
}

// Close is a no-op; connections live for a single job
func (p *NetworkPrinter) Close() error {
	return nil
}
