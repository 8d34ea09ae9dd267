package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jetsetgo/kot-print-server/internal/bridge"
	"github.com/jetsetgo/kot-print-server/internal/jobs"
	"github.com/jetsetgo/kot-print-server/internal/logging"
	"github.com/jetsetgo/kot-print-server/internal/metrics"
	"github.com/jetsetgo/kot-print-server/internal/order"
	"github.com/jetsetgo/kot-print-server/internal/ticket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPaperOut = errors.New("paper out")

// fakeBridge records payloads per printer
type fakeBridge struct {
	mu       sync.Mutex
	printers []string
	printed  map[string][]string
	fail     map[string]error

	started chan string
	release chan struct{}
}

func newFakeBridge(printers ...string) *fakeBridge {
	return &fakeBridge{
		printers: printers,
		printed:  make(map[string][]string),
		fail:     make(map[string]error),
	}
}

func (f *fakeBridge) Connect(ctx context.Context) error { return nil }

func (f *fakeBridge) Printers(ctx context.Context) ([]string, error) {
	return f.printers, nil
}

func (f *fakeBridge) NewConfig(printerID string) bridge.Config {
	return bridge.Config{Printer: printerID}
}

func (f *fakeBridge) Print(ctx context.Context, cfg bridge.Config, data []bridge.Segment) error {
	if f.started != nil {
		f.started <- cfg.Printer
		<-f.release
	}

	payload, err := bridge.Join(data)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.printed[cfg.Printer] = append(f.printed[cfg.Printer], string(payload))
	return f.fail[cfg.Printer]
}

func (f *fakeBridge) Close() error { return nil }

func (f *fakeBridge) jobs(printer string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.printed[printer]
}

func newLedger(t *testing.T, opts ...order.Option) *order.Ledger {
	t.Helper()
	l := order.New(opts...)
	for _, it := range []struct {
		name    string
		qty     int
		printer string
	}{
		{"Soup", 2, "P1"},
		{"Bread", 1, "P2"},
		{"Cake", 1, "P1"},
	} {
		_, err := l.Append(it.name, it.qty, it.printer)
		require.NoError(t, err)
	}
	return l
}

func newDispatcher(b bridge.Bridge, opts ...Option) *Dispatcher {
	return New(b, append([]Option{WithLogger(logging.NewNop())}, opts...)...)
}

func TestDispatchGroupsByPrinter(t *testing.T) {
	b := newFakeBridge("P1", "P2")
	ledger := newLedger(t)

	res, err := newDispatcher(b).Dispatch(context.Background(), ledger, nil)
	require.NoError(t, err)

	require.Len(t, b.jobs("P1"), 1)
	require.Len(t, b.jobs("P2"), 1)
	assert.Equal(t,
		"\n----- Kitchen Order Ticket -----\nOrder Details:\n - Soup x2\n - Cake x1\n-------------------------------\n\n",
		b.jobs("P1")[0])
	assert.Contains(t, b.jobs("P2")[0], " - Bread x1\n")
	assert.NotContains(t, b.jobs("P2")[0], "Soup")

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "P1", res.Outcomes[0].PrinterID)
	assert.Equal(t, "P2", res.Outcomes[1].PrinterID)
	assert.Len(t, res.Succeeded(), 2)
	assert.Empty(t, res.Failed())

	assert.True(t, res.Cleared)
	assert.Equal(t, 3, res.Removed)
	assert.Equal(t, 0, ledger.Len())

	require.Len(t, res.Notices, 1)
	assert.Equal(t, LevelInfo, res.Notices[0].Level)
}

func TestDispatchSubmitsConcurrently(t *testing.T) {
	b := newFakeBridge()
	b.started = make(chan string)
	b.release = make(chan struct{})

	ledger := newLedger(t)
	done := make(chan Result, 1)
	go func() {
		res, _ := newDispatcher(b).Dispatch(context.Background(), ledger, nil)
		done <- res
	}()

	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case p := <-b.started:
			seen[p] = true
		case <-time.After(2 * time.Second):
			t.Fatal("jobs were not submitted concurrently")
		}
	}
	assert.Equal(t, 3, ledger.Len(), "ledger untouched while jobs are in flight")
	close(b.release)

	select {
	case res := <-done:
		assert.Len(t, res.Outcomes, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not settle")
	}
	assert.Equal(t, 0, ledger.Len())
}

func TestDispatchKeepsItemsAddedWhilePrinting(t *testing.T) {
	b := newFakeBridge()
	b.started = make(chan string)
	b.release = make(chan struct{})

	ledger := newLedger(t)
	done := make(chan Result, 1)
	go func() {
		res, _ := newDispatcher(b).Dispatch(context.Background(), ledger, nil)
		done <- res
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-b.started:
		case <-time.After(2 * time.Second):
			t.Fatal("jobs were not submitted")
		}
	}
	tea, err := ledger.Append("Tea", 1, "P3")
	require.NoError(t, err)
	close(b.release)

	var res Result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch did not settle")
	}

	assert.True(t, res.Cleared)
	assert.Equal(t, 3, res.Removed)
	assert.Equal(t, []order.LineItem{tea}, ledger.Snapshot(), "late item waits for the next dispatch")
	assert.Empty(t, b.jobs("P3"))
}

func TestDispatchEmptyLedger(t *testing.T) {
	b := newFakeBridge("P1")
	m := metrics.New()

	res, err := newDispatcher(b, WithMetrics(m)).Dispatch(context.Background(), order.New(), nil)
	require.ErrorIs(t, err, ErrEmptyLedger)
	assert.Empty(t, res.Outcomes)
	require.Len(t, res.Notices, 1)
	assert.Equal(t, LevelBlocking, res.Notices[0].Level)
	assert.Empty(t, b.jobs("P1"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Dispatches.WithLabelValues("empty")))
}

func TestDispatchUnassignedOnly(t *testing.T) {
	b := newFakeBridge("P1")
	ledger := order.New(order.WithUnassigned())
	_, err := ledger.Append("Salad", 1, "")
	require.NoError(t, err)

	var forwarded []Notice
	var mu sync.Mutex
	notifier := NotifierFunc(func(n Notice) {
		mu.Lock()
		forwarded = append(forwarded, n)
		mu.Unlock()
	})

	res, err := newDispatcher(b, WithNotifier(notifier)).Dispatch(context.Background(), ledger, nil)
	require.NoError(t, err)

	assert.Empty(t, res.Outcomes)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, order.Unassigned, res.Skipped[0].PrinterID)
	assert.False(t, res.Cleared)
	assert.Equal(t, 1, ledger.Len(), "nothing attempted, ledger kept")

	require.Len(t, forwarded, 1)
	assert.Equal(t, LevelBlocking, forwarded[0].Level)
	assert.Equal(t, res.Notices, forwarded)
}

func TestDispatchSkipsUnassignedGroup(t *testing.T) {
	b := newFakeBridge("P1")
	ledger := order.New(order.WithUnassigned())
	_, err := ledger.Append("Salad", 1, "")
	require.NoError(t, err)
	_, err = ledger.Append("Soup", 2, "P1")
	require.NoError(t, err)

	res, err := newDispatcher(b).Dispatch(context.Background(), ledger, nil)
	require.NoError(t, err)

	require.Len(t, b.jobs("P1"), 1)
	assert.NotContains(t, b.jobs("P1")[0], "Salad")
	assert.Len(t, res.Skipped, 1)
	assert.True(t, res.Cleared)
	assert.Equal(t, 0, ledger.Len())
}

func TestDispatchAbortOnUnassigned(t *testing.T) {
	b := newFakeBridge("P1")
	ledger := order.New(order.WithUnassigned())
	_, err := ledger.Append("Soup", 2, "P1")
	require.NoError(t, err)
	_, err = ledger.Append("Salad", 1, "")
	require.NoError(t, err)

	res, err := newDispatcher(b, WithUnassignedPolicy(AbortOnUnassigned)).
		Dispatch(context.Background(), ledger, nil)

	var uerr *UnassignedGroupError
	require.ErrorAs(t, err, &uerr)
	require.Len(t, uerr.Items, 1)
	assert.Equal(t, "Salad", uerr.Items[0].Name)
	assert.Equal(t, "1 item is not assigned to any printer", uerr.Error())

	assert.Empty(t, b.jobs("P1"))
	assert.Empty(t, res.Outcomes)
	assert.Equal(t, 2, ledger.Len())
}

func TestDispatchPartialFailure(t *testing.T) {
	b := newFakeBridge("P1", "P2")
	b.fail["P2"] = errPaperOut
	ledger := newLedger(t)

	res, err := newDispatcher(b).Dispatch(context.Background(), ledger, nil)
	require.NoError(t, err)

	require.Len(t, b.jobs("P1"), 1, "sibling job unaffected")
	require.Len(t, res.Failed(), 1)

	failed := res.Failed()[0]
	var perr *PrintJobError
	require.ErrorAs(t, failed.Err, &perr)
	assert.Equal(t, "P2", perr.PrinterID)
	assert.ErrorIs(t, failed.Err, errPaperOut)

	assert.True(t, res.Cleared, "cleared even when a job failed")
	assert.Equal(t, 0, ledger.Len())

	var errorNotices []Notice
	for _, n := range res.Notices {
		if n.Level == LevelError {
			errorNotices = append(errorNotices, n)
		}
	}
	require.Len(t, errorNotices, 1)
	assert.Equal(t, "P2", errorNotices[0].PrinterID)
	assert.Equal(t, LevelInfo, res.Notices[len(res.Notices)-1].Level, "completion notice comes last")
}

func TestDispatchAllFailedStillClears(t *testing.T) {
	b := newFakeBridge("P1", "P2")
	b.fail["P1"] = errPaperOut
	b.fail["P2"] = errPaperOut
	ledger := newLedger(t)
	m := metrics.New()

	res, err := newDispatcher(b, WithMetrics(m)).Dispatch(context.Background(), ledger, nil)
	require.NoError(t, err)
	assert.Len(t, res.Failed(), 2)
	assert.Equal(t, 0, ledger.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Dispatches.WithLabelValues("failed")))
}

func TestDispatchRetainFailed(t *testing.T) {
	b := newFakeBridge("P1", "P2")
	b.fail["P2"] = errPaperOut
	ledger := newLedger(t)

	res, err := newDispatcher(b, WithClearPolicy(RetainFailed)).Dispatch(context.Background(), ledger, nil)
	require.NoError(t, err)

	assert.False(t, res.Cleared)
	assert.Equal(t, 2, res.Removed)

	left := ledger.Snapshot()
	require.Len(t, left, 1)
	assert.Equal(t, "Bread", left[0].Name)
}

func TestDispatchUnknownPrinter(t *testing.T) {
	b := newFakeBridge("P1")
	dir := bridge.NewDirectory(logging.NewNop())
	_, err := dir.Refresh(context.Background(), b)
	require.NoError(t, err)

	store := jobs.NewMemoryStore(10)
	res, err := newDispatcher(b, WithJobStore(store)).Dispatch(context.Background(), newLedger(t), dir)
	require.NoError(t, err)

	assert.Empty(t, b.jobs("P2"), "bridge never asked to print on P2")
	require.Len(t, res.Failed(), 1)
	assert.ErrorIs(t, res.Failed()[0].Err, ErrUnknownPrinter)

	entries, err := store.Entries(context.Background())
	require.NoError(t, err)
	statuses := map[string]string{}
	for _, e := range entries {
		statuses[e.PrinterID] = e.Status
	}
	assert.Equal(t, jobs.StatusCompleted, statuses["P1"])
	assert.Equal(t, jobs.StatusFailed, statuses["P2"])
}

func TestDispatchRecordsJobsAndMetrics(t *testing.T) {
	b := newFakeBridge("P1", "P2")
	b.fail["P2"] = errPaperOut
	store := jobs.NewMemoryStore(10)
	m := metrics.New()

	_, err := newDispatcher(b, WithJobStore(store), WithMetrics(m)).
		Dispatch(context.Background(), newLedger(t), nil)
	require.NoError(t, err)

	entries, err := store.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, jobs.KindKOT, e.Kind)
		assert.NotNil(t, e.CompletedAt)
		if e.PrinterID == "P2" {
			assert.Equal(t, "paper out", e.Error)
			assert.Equal(t, 1, e.Items)
		} else {
			assert.Equal(t, 2, e.Items)
		}
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(m.PrintJobs.WithLabelValues("P1", "kot", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PrintJobs.WithLabelValues("P2", "kot", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Dispatches.WithLabelValues("partial")))
}

func TestCustomFrame(t *testing.T) {
	b := newFakeBridge("P1")
	ledger := order.New()
	_, err := ledger.Append("Soup", 1, "P1")
	require.NoError(t, err)

	_, err = newDispatcher(b, WithHeader("TABLE 4\n"), WithFooter("==\n")).
		Dispatch(context.Background(), ledger, nil)
	require.NoError(t, err)
	assert.Equal(t, "TABLE 4\nOrder Details:\n - Soup x1\n==\n", b.jobs("P1")[0])
}

func TestPrintReceipt(t *testing.T) {
	b := newFakeBridge("P1")
	d := newDispatcher(b)
	receipt := ticket.Receipt{Lines: []ticket.ReceiptLine{
		{Label: "Item 1", Amount: decimal.NewFromInt(10)},
		{Label: "Item 2", Amount: decimal.NewFromInt(15)},
	}}

	_, err := d.PrintReceipt(context.Background(), "", receipt)
	var verr *order.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "printer", verr.Field)

	id, err := d.PrintReceipt(context.Background(), "P1", receipt)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, b.jobs("P1"), 1)
	assert.Contains(t, b.jobs("P1")[0], "Total\t$25.00\n")

	b.fail["P1"] = errPaperOut
	_, err = d.PrintReceipt(context.Background(), "P1", receipt)
	var perr *PrintJobError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, errPaperOut)
}

func TestPrintTextPassesBytesThrough(t *testing.T) {
	b := newFakeBridge("P1")
	text := ticket.Text(ticket.Document{Store: "Diner"})

	_, err := newDispatcher(b).PrintText(context.Background(), "P1", text)
	require.NoError(t, err)
	require.Len(t, b.jobs("P1"), 1)
	assert.Equal(t, text, b.jobs("P1")[0])

	_, err = newDispatcher(b).PrintRaw(context.Background(), "P1", 1, nil)
	var verr *order.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "data", verr.Field)
}
