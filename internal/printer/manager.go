package printer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/jetsetgo/kot-print-server/internal/config"
)

// ErrPrinterNotFound is returned for IDs the manager does not know
var ErrPrinterNotFound = errors.New("printer not found")

// Manager manages printer connections and print jobs
type Manager struct {
	mu       sync.RWMutex
	printers map[string]Printer
	order    []string
}

// Printer represents a thermal printer
type Printer interface {
	ID() string
	Name() string
	Type() string
	CodePage() string
	Status() string
	Print(data []byte) error
	Close() error
}

// Info describes a configured printer for listings
type Info struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	CodePage string `json:"code_page,omitempty"`
}

// DiscoveredPrinter represents a discovered printer
type DiscoveredPrinter struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address string `json:"address,omitempty"`
	Port    int    `json:"port,omitempty"`
}

// NewManager creates a new printer manager
func NewManager() *Manager {
	return &Manager{
		printers: make(map[string]Printer),
	}
}

// FromConfig builds a manager holding every configured printer
func FromConfig(printers []config.PrinterConfig) (*Manager, error) {
	m := NewManager()
	for _, pc := range printers {
		switch pc.Type {
		case "network":
			port := pc.Port
			if port == 0 {
				port = 9100
			}
			m.AddPrinter(NewNetworkPrinter(pc.ID, pc.Name, pc.Address, port, pc.CodePage))
		case "serial":
			m.AddPrinter(NewSerialPrinter(pc.ID, pc.Name, pc.Device, pc.BaudRate, pc.CodePage))
		default:
			return nil, fmt.Errorf("printer %s: unsupported type %q", pc.ID, pc.Type)
		}
	}
	return m, nil
}

// AddPrinter adds a printer to the manager, replacing one with the same ID
func (m *Manager) AddPrinter(p Printer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.printers[p.ID()]; !exists {
		m.order = append(m.order, p.ID())
	}
	m.printers[p.ID()] = p
}

// GetPrinter gets a printer by ID
func (m *Manager) GetPrinter(id string) (Printer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.printers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPrinterNotFound, id)
	}
	return p, nil
}

// IDs returns printer IDs in the order they were added
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// List returns a description of every printer
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.order))
	for _, id := range m.order {
		p := m.printers[id]
		out = append(out, Info{ID: p.ID(), Name: p.Name(), Type: p.Type(), CodePage: p.CodePage()})
	}
	return out
}

// Statuses probes every printer and returns its status keyed by ID
func (m *Manager) Statuses() map[string]string {
	m.mu.RLock()
	printers := make([]Printer, 0, len(m.printers))
	for _, p := range m.printers {
		printers = append(printers, p)
	}
	m.mu.RUnlock()

	var mu sync.Mutex
	var wg sync.WaitGroup
	statuses := make(map[string]string, len(printers))
	for _, p := range printers {
		wg.Add(1)
		go func(p Printer) {
			defer wg.Done()
			s := p.Status()
			mu.Lock()
			statuses[p.ID()] = s
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return statuses
}

// Print sends raw data to a printer
func (m *Manager) Print(printerID string, data []byte) error {
	p, err := m.GetPrinter(printerID)
	if err != nil {
		return err
	}
	return p.Print(data)
}

// Encode converts text to the code page of the given printer
func (m *Manager) Encode(printerID, text string) ([]byte, error) {
	p, err := m.GetPrinter(printerID)
	if err != nil {
		return nil, err
	}
	return EncodeText(p.CodePage(), text)
}

// TestPrint sends a test print to a printer
func (m *Manager) TestPrint(printerID string) error {
	p, err := m.GetPrinter(printerID)
	if err != nil {
		return err
	}

	return p.Print(buildTestReceipt(p.Name(), time.Now()))
}

// Close closes every printer
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, p := range m.printers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DiscoverOptions controls a port-probe scan
type DiscoverOptions struct {
	Subnets []string
	Port    int
	Timeout time.Duration
	Workers int
}

// Discover scans the given subnets for hosts accepting raw print jobs
func (m *Manager) Discover(ctx context.Context, opts DiscoverOptions) ([]DiscoveredPrinter, error) {
	if opts.Port == 0 {
		opts.Port = 9100
	}
	if opts.Workers <= 0 {
		opts.Workers = 50
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 100 * time.Millisecond
	}

	hosts := make(chan string, 256)
	found := make(chan string, 256)
	var wg sync.WaitGroup

	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for host := range hosts {
				if isPortOpen(host, opts.Port, opts.Timeout) {
					found <- host
				}
			}
		}()
	}

	go func() {
		defer close(hosts)
		for _, subnet := range opts.Subnets {
			for i := 1; i <= 254; i++ {
				select {
				case <-ctx.Done():
					return
				case hosts <- fmt.Sprintf("%s%d", subnet, i):
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(found)
	}()

	discovered := make([]DiscoveredPrinter, 0)
	for host := range found {
		discovered = append(discovered, DiscoveredPrinter{
			ID:      fmt.Sprintf("network-%s", host),
			Name:    fmt.Sprintf("Printer at %s", host),
			Type:    "network",
			Address: host,
			Port:    opts.Port,
		})
	}

	sort.Slice(discovered, func(i, j int) bool {
		return discovered[i].ID < discovered[j].ID
	})

	return discovered, ctx.Err()
}

// isPortOpen checks if a port is open on a host
func isPortOpen(host string, port int, timeout time.Duration) bool {
	address := net.JoinHostPort(host, fmt.Sprint(port))
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// buildTestReceipt creates ESC/POS commands for a test receipt
func buildTestReceipt(name string, now time.Time) []byte {
	var data []byte

	// Initialize printer
	data = append(data, 0x1B, 0x40) // ESC @

	// Center align
	data = append(data, 0x1B, 0x61, 0x01) // ESC a 1

	// Bold on, double size
	data = append(data, 0x1B, 0x45, 0x01) // ESC E 1
	data = append(data, 0x1D, 0x21, 0x11) // GS ! 0x11

	data = append(data, []byte("KOT PRINT\n")...)

	// Normal size, bold off
	data = append(data, 0x1D, 0x21, 0x00) // GS ! 0x00
	data = append(data, 0x1B, 0x45, 0x00) // ESC E 0

	data = append(data, []byte(name+"\n")...)
	data = append(data, []byte("-------------------\n\n")...)

	// Left align
	data = append(data, 0x1B, 0x61, 0x00) // ESC a 0

	data = append(data, []byte("Test Print\n")...)
	data = append(data, []byte(fmt.Sprintf("Time: %s\n\n", now.Format("2006-01-02 15:04:05")))...)

	data = append(data, []byte("Printer OK!\n")...)

	// Feed 3 lines and cut
	data = append(data, 0x1B, 0x64, 0x03)       // ESC d 3
	data = append(data, 0x1D, 0x56, 0x42, 0x00) // GS V 66 0

	return data
}
