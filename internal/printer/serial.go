package printer

import (
	"fmt"
	"io"
	"slices"
	"sync"

	"go.bug.st/serial"
)

type portOpener func(device string, mode *serial.Mode) (io.WriteCloser, error)

func openSerialPort(device string, mode *serial.Mode) (io.WriteCloser, error) {
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// SerialPrinter is a thermal printer on a COM / tty port.
// The port is opened for each job and released afterwards so other
// programs can share the device.
type SerialPrinter struct {
	id       string
	name     string
	device   string
	baudRate int
	codePage string

	open  portOpener
	ports func() ([]string, error)
	mu    sync.Mutex
}

// NewSerialPrinter creates a printer on the given device.
// A zero baud rate defaults to 9600, the usual ESC/POS factory setting.
func NewSerialPrinter(id, name, device string, baudRate int, codePage string) *SerialPrinter {
	if baudRate == 0 {
		baudRate = 9600
	}
	return &SerialPrinter{
		id:       id,
		name:     name,
		device:   device,
		baudRate: baudRate,
		codePage: codePage,
		open:     openSerialPort,
		ports:    serial.GetPortsList,
	}
}

func (p *SerialPrinter) ID() string       { return p.id }
func (p *SerialPrinter) Name() string     { return p.name }
func (p *SerialPrinter) Type() string     { return "serial" }
func (p *SerialPrinter) CodePage() string { return p.codePage }

// Status reports whether the device is currently present
func (p *SerialPrinter) Status() string {
	ports, err := p.ports()
	if err != nil {
		return "unknown"
	}
	if slices.Contains(ports, p.device) {
		return "online"
	}
	return "offline"
}

// Print writes data to the serial port
func (p *SerialPrinter) Print(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	mode := &serial.Mode{
		BaudRate: p.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := p.open(p.device, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", p.device, err)
	}
	defer port.Close()

	if _, err := port.Write(data); err != nil {
		return fmt.Errorf("failed to send data to printer: %w", err)
	}
	return nil
}

// Close is a no-op; the port is released after every job
func (p *SerialPrinter) Close() error {
	return nil
}
