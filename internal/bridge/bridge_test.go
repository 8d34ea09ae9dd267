package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jetsetgo/kot-print-server/internal/logging"
	"github.com/jetsetgo/kot-print-server/internal/printer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memPrinter records every job it is sent
type memPrinter struct {
	id, codePage string
	fail         error

	mu   sync.Mutex
	jobs [][]byte
}

func (p *memPrinter) ID() string       { return p.id }
func (p *memPrinter) Name() string     { return strings.ToUpper(p.id) }
func (p *memPrinter) Type() string     { return "memory" }
func (p *memPrinter) CodePage() string { return p.codePage }
func (p *memPrinter) Status() string   { return "online" }
func (p *memPrinter) Close() error     { return nil }

func (p *memPrinter) Print(data []byte) error {
	if p.fail != nil {
		return p.fail
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, append([]byte(nil), data...))
	return nil
}

func (p *memPrinter) Jobs() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.jobs...)
}

func newLocal(printers ...*memPrinter) *Local {
	mgr := printer.NewManager()
	for _, p := range printers {
		mgr.AddPrinter(p)
	}
	return NewLocal(mgr)
}

func TestSegmentBytes(t *testing.T) {
	data, err := Join([]Segment{
		Plain("Soup x2\n"),
		Binary([]byte{0x1B, 'd', 0x03}),
	})
	require.NoError(t, err)
	assert.Equal(t, "Soup x2\n\x1bd\x03", string(data))

	_, err = Segment{Type: "raw", Format: "pdf", Data: "x"}.Bytes()
	assert.Error(t, err)
	_, err = Segment{Type: "pixel", Format: FormatPlain}.Bytes()
	assert.Error(t, err)
	_, err = Join([]Segment{{Type: "raw", Format: FormatBase64, Data: "!!"}})
	assert.ErrorContains(t, err, "segment 0")
}

func TestLocalPrintEncodesPlainSegments(t *testing.T) {
	p := &memPrinter{id: "kitchen", codePage: "cp437"}
	b := newLocal(p)

	ids, err := b.Printers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"kitchen"}, ids)

	cfg := b.NewConfig("kitchen")
	cfg.Copies = 2
	err = b.Print(context.Background(), cfg, []Segment{
		Plain("Crème x1\n"),
		Binary([]byte{0x1D, 0x56, 0x42, 0x00}),
	})
	require.NoError(t, err)

	jobs := p.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, []byte{'C', 'r', 0x8A, 'm', 'e', ' ', 'x', '1', '\n', 0x1D, 0x56, 0x42, 0x00}, jobs[0])
	assert.Equal(t, jobs[0], jobs[1])
}

func TestLocalPrintUnknownPrinter(t *testing.T) {
	b := newLocal()
	err := b.Print(context.Background(), b.NewConfig("ghost"), []Segment{Plain("x")})
	assert.ErrorIs(t, err, printer.ErrPrinterNotFound)
}

type failingBridge struct{ *Local }

func (failingBridge) Printers(context.Context) ([]string, error) {
	return nil, errors.New("bridge offline")
}

func TestDirectoryRefresh(t *testing.T) {
	d := NewDirectory(logging.NewNop())

	ids, err := d.Refresh(context.Background(), newLocal(&memPrinter{id: "P1"}, &memPrinter{id: "P2"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, ids)
	assert.True(t, d.Contains("P2"))
	assert.Equal(t, 2, d.Len())

	_, err = d.Refresh(context.Background(), failingBridge{})
	var rerr *DirectoryRefreshError
	require.ErrorAs(t, err, &rerr)
	assert.EqualError(t, rerr.Unwrap(), "bridge offline")
	assert.Empty(t, d.IDs(), "failed refresh leaves the directory empty")
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketRoundTrip(t *testing.T) {
	kitchen := &memPrinter{id: "kitchen"}
	broken := &memPrinter{id: "bar", fail: errors.New("paper out")}
	server := NewServer(newLocal(kitchen, broken), logging.NewNop())
	srv := httptest.NewServer(server)
	defer srv.Close()

	pushed := make(chan Response, 1)
	client := NewWSClient(wsURL(srv), WSOptions{
		RequestTimeout: 2 * time.Second,
		Logger:         logging.NewNop(),
		OnPush:         func(r Response) { pushed <- r },
	})
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Connect(ctx))
	assert.True(t, client.Status().Connected)

	ids, err := client.Printers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kitchen", "bar"}, ids)

	require.NoError(t, client.Print(ctx, client.NewConfig("kitchen"), []Segment{Plain("Soup x2\n")}))
	assert.Equal(t, [][]byte{[]byte("Soup x2\n")}, kitchen.Jobs())

	err = client.Print(ctx, client.NewConfig("bar"), []Segment{Plain("Tea x1\n")})
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, "paper out")

	require.Eventually(t, func() bool { return server.Sessions() == 1 }, time.Second, 10*time.Millisecond)
	server.Broadcast(Response{Type: TypeLedger, Items: json.RawMessage(`[]`)})
	select {
	case r := <-pushed:
		assert.Equal(t, TypeLedger, r.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no pushed frame")
	}
}

func TestWebSocketUsableRightAfterConnect(t *testing.T) {
	server := NewServer(newLocal(&memPrinter{id: "kitchen"}), logging.NewNop())
	srv := httptest.NewServer(server)
	defer srv.Close()

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		client := NewWSClient(wsURL(srv), WSOptions{RequestTimeout: 2 * time.Second, Logger: logging.NewNop()})
		require.NoError(t, client.Connect(ctx))
		require.True(t, client.Status().Connected, "connected when Connect returns")

		ids, err := client.Printers(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"kitchen"}, ids)
		client.Close()
	}
}

func TestWebSocketConcurrentConnectDialsOnce(t *testing.T) {
	server := NewServer(newLocal(&memPrinter{id: "kitchen"}), logging.NewNop())
	srv := httptest.NewServer(server)
	defer srv.Close()

	client := NewWSClient(wsURL(srv), WSOptions{Logger: logging.NewNop()})
	defer client.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, client.Connect(context.Background()))
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return server.Sessions() == 1 }, time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return server.Sessions() > 1 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestWebSocketNotConnected(t *testing.T) {
	client := NewWSClient("ws://127.0.0.1:1/ws", WSOptions{Logger: logging.NewNop()})
	_, err := client.Printers(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Error(t, client.Connect(context.Background()))
	assert.NotEmpty(t, client.Status().LastError)
}

func TestHTTPClient(t *testing.T) {
	var got PrintRequest
	mux := chi.NewRouter()
	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.Get("/api/printers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		w.Write([]byte(`{"printers":[{"id":"P1","name":"Kitchen"},{"id":"P2"}]}`))
	})
	mux.Post("/api/print", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.PrinterID == "P2" {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"success":false,"error":"paper out"}`))
			return
		}
		w.Write([]byte(`{"success":true,"job_id":"j1"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewHTTPClient(srv.URL+"/", "secret", time.Second)
	ctx := context.Background()

	require.NoError(t, client.Connect(ctx))
	ids, err := client.Printers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2"}, ids)

	require.NoError(t, client.Print(ctx, client.NewConfig("P1"), []Segment{Plain("Soup x2\n")}))
	assert.Equal(t, "P1", got.PrinterID)
	assert.Equal(t, []Segment{Plain("Soup x2\n")}, got.Segments)

	err = client.Print(ctx, client.NewConfig("P2"), []Segment{Plain("x")})
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "paper out", remote.Message)

	srv.Close()
	_, err = client.Printers(ctx)
	assert.Error(t, err)
	assert.False(t, client.Status().Connected)
}
