package printer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/jetsetgo/kot-print-server/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// listen starts a raw TCP sink and returns everything each connection wrote.
func listen(t *testing.T) (host string, port int, jobs <-chan []byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	out := make(chan []byte, 8)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			data, _ := io.ReadAll(conn)
			conn.Close()
			out <- data
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, out
}

func TestNetworkPrinterPrint(t *testing.T) {
	host, port, jobs := listen(t)
	p := NewNetworkPrinter("kitchen", "Kitchen", host, port, "")

	require.NoError(t, p.Print([]byte("hello\n")))

	select {
	case got := <-jobs:
		assert.Equal(t, "hello\n", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("printer received nothing")
	}
	assert.Equal(t, "online", p.Status())
}

func TestNetworkPrinterUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	p := NewNetworkPrinter("gone", "Gone", "127.0.0.1", port, "")
	err = p.Print([]byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
	assert.Equal(t, "offline", p.Status())
}

type fakePort struct {
	bytes.Buffer
	closed bool
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func TestSerialPrinterPrint(t *testing.T) {
	port := &fakePort{}
	var gotMode *serial.Mode
	var gotDevice string

	p := NewSerialPrinter("bar", "Bar", "/dev/ttyUSB0", 0, "cp437")
	p.open = func(device string, mode *serial.Mode) (io.WriteCloser, error) {
		gotDevice, gotMode = device, mode
		return port, nil
	}
	p.ports = func() ([]string, error) { return []string{"/dev/ttyUSB0"}, nil }

	require.NoError(t, p.Print([]byte("ticket")))
	assert.Equal(t, "/dev/ttyUSB0", gotDevice)
	assert.Equal(t, 9600, gotMode.BaudRate)
	assert.Equal(t, "ticket", port.String())
	assert.True(t, port.closed)
	assert.Equal(t, "online", p.Status())

	p.ports = func() ([]string, error) { return nil, nil }
	assert.Equal(t, "offline", p.Status())
}

func TestSerialPrinterOpenFailure(t *testing.T) {
	p := NewSerialPrinter("bar", "Bar", "/dev/ttyUSB9", 19200, "")
	p.open = func(string, *serial.Mode) (io.WriteCloser, error) {
		return nil, errors.New("no such device")
	}

	err := p.Print([]byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/ttyUSB9")
}

func TestEncodeText(t *testing.T) {
	got, err := EncodeText("", "Café")
	require.NoError(t, err)
	assert.Equal(t, []byte("Café"), got)

	got, err = EncodeText("CP437", "Café x2\x1bd\x03")
	require.NoError(t, err)
	assert.Equal(t, []byte{'C', 'a', 'f', 0x82, ' ', 'x', '2', 0x1b, 'd', 0x03}, got)

	got, err = EncodeText("cp437", "5€")
	require.NoError(t, err)
	assert.Equal(t, []byte("5?"), got)

	got, err = EncodeText("cp1252", "5€")
	require.NoError(t, err)
	assert.Equal(t, []byte{'5', 0x80}, got)

	_, err = EncodeText("klingon", "x")
	assert.Error(t, err)
}

func TestManagerFromConfig(t *testing.T) {
	m, err := FromConfig([]config.PrinterConfig{
		{ID: "kitchen", Name: "Kitchen", Type: "network", Address: "10.0.0.5"},
		{ID: "bar", Name: "Bar", Type: "serial", Device: "/dev/ttyS0", CodePage: "cp858"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"kitchen", "bar"}, m.IDs())

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, Info{ID: "kitchen", Name: "Kitchen", Type: "network"}, list[0])
	assert.Equal(t, "cp858", list[1].CodePage)

	encoded, err := m.Encode("bar", "€")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD5}, encoded)

	_, err = m.GetPrinter("nope")
	assert.ErrorIs(t, err, ErrPrinterNotFound)
	assert.ErrorIs(t, m.Print("nope", nil), ErrPrinterNotFound)

	_, err = FromConfig([]config.PrinterConfig{{ID: "x", Type: "usb"}})
	assert.Error(t, err)
}

func TestManagerTestPrint(t *testing.T) {
	host, port, jobs := listen(t)
	m := NewManager()
	m.AddPrinter(NewNetworkPrinter("kitchen", "Kitchen Line", host, port, ""))

	require.NoError(t, m.TestPrint("kitchen"))
	got := <-jobs
	assert.True(t, bytes.HasPrefix(got, []byte{0x1B, 0x40}))
	assert.Contains(t, string(got), "Kitchen Line")
	assert.True(t, bytes.HasSuffix(got, []byte{0x1D, 0x56, 0x42, 0x00}))

	assert.Equal(t, map[string]string{"kitchen": "online"}, m.Statuses())
}

func TestDiscoverFindsListener(t *testing.T) {
	_, port, _ := listen(t)
	m := NewManager()

	found, err := m.Discover(context.Background(), DiscoverOptions{
		Subnets: []string{"127.0.0."},
		Port:    port,
		Timeout: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	var hosts []string
	for _, d := range found {
		hosts = append(hosts, d.Address)
		assert.Equal(t, port, d.Port)
	}
	assert.Contains(t, hosts, "127.0.0.1")
}
