// Package dispatch turns the order ledger into kitchen order tickets, one
// print job per printer, and sends them through a printing bridge.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jetsetgo/kot-print-server/internal/bridge"
	"github.com/jetsetgo/kot-print-server/internal/jobs"
	"github.com/jetsetgo/kot-print-server/internal/metrics"
	"github.com/jetsetgo/kot-print-server/internal/order"
	"github.com/jetsetgo/kot-print-server/internal/ticket"
)

// ClearPolicy decides what happens to the ledger after a dispatch
type ClearPolicy string

const (
	// ClearAlways empties the ledger once any job was attempted
	ClearAlways ClearPolicy = "always"
	// RetainFailed removes only the items that printed
	RetainFailed ClearPolicy = "retain_failed"
)

// UnassignedPolicy decides what happens to items without a printer
type UnassignedPolicy string

const (
	// SkipUnassigned skips the unassigned group and prints the rest
	SkipUnassigned UnassignedPolicy = "skip"
	// AbortOnUnassigned prints nothing while any item is unassigned
	AbortOnUnassigned UnassignedPolicy = "abort"
)

// Dispatch results reported to metrics
const (
	resultCompleted = "completed"
	resultPartial   = "partial"
	resultFailed    = "failed"
	resultEmpty     = "empty"
	resultAborted   = "aborted"
	resultSkipped   = "skipped"
)

// Outcome is the settled state of one printer job
type Outcome struct {
	PrinterID string
	Items     []order.LineItem
	Err       error
}

// MarshalJSON renders the error as a string
func (o Outcome) MarshalJSON() ([]byte, error) {
	out := struct {
		PrinterID string           `json:"printer_id"`
		Items     []order.LineItem `json:"items"`
		Success   bool             `json:"success"`
		Error     string           `json:"error,omitempty"`
	}{PrinterID: o.PrinterID, Items: o.Items, Success: o.Err == nil}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return json.Marshal(out)
}

// Result summarizes a dispatch
type Result struct {
	Outcomes []Outcome     `json:"outcomes"`
	Skipped  []order.Group `json:"skipped,omitempty"`
	Notices  []Notice      `json:"notices"`

	// Cleared reports that every item of the dispatched snapshot was removed.
	// Items appended while jobs were in flight are never touched.
	Cleared bool `json:"cleared"`
	Removed  int           `json:"removed"`
}

// Succeeded returns the outcomes without error
func (r Result) Succeeded() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err == nil {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the outcomes with an error
func (r Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Dispatcher sends kitchen tickets and receipts through a bridge
type Dispatcher struct {
	bridge     bridge.Bridge
	clear      ClearPolicy
	unassigned UnassignedPolicy
	notifier   Notifier
	store      jobs.Store
	metrics    *metrics.Metrics
	frame      ticket.Frame
	log        *slog.Logger
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithClearPolicy sets the post-dispatch clear policy
func WithClearPolicy(p ClearPolicy) Option {
	return func(d *Dispatcher) {
		if p != "" {
			d.clear = p
		}
	}
}

// WithUnassignedPolicy sets the unassigned item policy
func WithUnassignedPolicy(p UnassignedPolicy) Option {
	return func(d *Dispatcher) {
		if p != "" {
			d.unassigned = p
		}
	}
}

// WithNotifier forwards every notice to n
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) {
		d.notifier = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.log = logger
		}
	}
}

// WithJobStore records every submission in store
func WithJobStore(store jobs.Store) Option {
	return func(d *Dispatcher) {
		d.store = store
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithHeader replaces the KOT header text
func WithHeader(header string) Option {
	return func(d *Dispatcher) {
		d.frame.Header = header
	}
}

// WithFooter replaces the KOT footer text
func WithFooter(footer string) Option {
	return func(d *Dispatcher) {
		d.frame.Footer = footer
	}
}

// New creates a dispatcher on top of b
func New(b bridge.Bridge, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		bridge:     b,
		clear:      ClearAlways,
		unassigned: SkipUnassigned,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch prints one kitchen ticket per printer for the current ledger.
//
// Jobs run concurrently and the call returns once every job has settled.
// A failed job does not stop its siblings and is not retried. The ledger is
// cleared according to the clear policy if at least one job was attempted;
// only items from the snapshot taken at the start are removed.
// dir may be nil; an empty directory accepts any printer.
func (d *Dispatcher) Dispatch(ctx context.Context, ledger *order.Ledger, dir *bridge.Directory) (Result, error) {
	notices := &collector{next: d.notifier}

	items := ledger.Snapshot()
	if len(items) == 0 {
		notices.Notify(Notice{Level: LevelBlocking, Message: "No items to print in KOT."})
		d.metrics.ObserveDispatch(resultEmpty)
		return Result{Notices: notices.list()}, ErrEmptyLedger
	}

	var (
		res    Result
		groups []order.Group
	)
	for _, g := range order.Partition(items) {
		if g.PrinterID != order.Unassigned {
			groups = append(groups, g)
			continue
		}

		uerr := &UnassignedGroupError{Items: g.Items}
		notices.Notify(Notice{
			Level:   LevelBlocking,
			Message: "Some items are not assigned to any printer. Please assign a printer to all items.",
		})
		d.log.Warn("Unassigned items in order", "items", len(g.Items), "policy", string(d.unassigned))
		res.Skipped = append(res.Skipped, g)

		if d.unassigned == AbortOnUnassigned {
			d.metrics.ObserveDispatch(resultAborted)
			res.Notices = notices.list()
			return res, uerr
		}
		d.metrics.ObserveSkipped(order.Unassigned, jobs.KindKOT)
	}

	res.Outcomes = make([]Outcome, len(groups))
	var wg sync.WaitGroup
	for i, g := range groups {
		i, g := i, g
		wg.Add(1)
		go func() {
			defer wg.Done()
			res.Outcomes[i] = d.printGroup(ctx, g, dir, notices)
		}()
	}
	wg.Wait()

	if len(res.Outcomes) == 0 {
		d.metrics.ObserveDispatch(resultSkipped)
		res.Notices = notices.list()
		return res, nil
	}

	d.applyClearPolicy(ledger, items, &res)

	failed := len(res.Failed())
	printed := len(res.Outcomes) - failed
	notices.Notify(Notice{
		Level:   LevelInfo,
		Message: fmt.Sprintf("KOT printing finished: %d printed, %d failed.", printed, failed),
	})

	switch {
	case failed == len(res.Outcomes):
		d.metrics.ObserveDispatch(resultFailed)
	case failed > 0 || len(res.Skipped) > 0:
		d.metrics.ObserveDispatch(resultPartial)
	default:
		d.metrics.ObserveDispatch(resultCompleted)
	}

	res.Notices = notices.list()
	return res, nil
}

func (d *Dispatcher) applyClearPolicy(ledger *order.Ledger, snapshot []order.LineItem, res *Result) {
	var ids []uint64
	if d.clear == RetainFailed {
		for _, o := range res.Succeeded() {
			for _, item := range o.Items {
				ids = append(ids, item.ID)
			}
		}
		res.Removed = ledger.RemoveIDs(ids)
		return
	}

	for _, item := range snapshot {
		ids = append(ids, item.ID)
	}
	res.Removed = ledger.RemoveIDs(ids)
	res.Cleared = true
}

func (d *Dispatcher) printGroup(ctx context.Context, g order.Group, dir *bridge.Directory, notices Notifier) Outcome {
	out := Outcome{PrinterID: g.PrinterID, Items: g.Items}

	if dir != nil && dir.Len() > 0 && !dir.Contains(g.PrinterID) {
		out.Err = d.reject(ctx, g.PrinterID, jobs.KindKOT, len(g.Items), ErrUnknownPrinter)
	} else {
		out.Err = d.submit(ctx, g.PrinterID, jobs.KindKOT, len(g.Items), ticket.KOT(g.Items, d.frame))
	}

	if out.Err != nil {
		notices.Notify(Notice{
			Level:     LevelError,
			PrinterID: g.PrinterID,
			Message:   fmt.Sprintf("Failed to print KOT on printer: %s.", g.PrinterID),
		})
	}
	return out
}

// PrintReceipt prints an ad-hoc receipt on one printer
func (d *Dispatcher) PrintReceipt(ctx context.Context, printerID string, r ticket.Receipt) (string, error) {
	if printerID == "" {
		return "", &order.ValidationError{Field: "printer", Reason: "select a printer for the receipt"}
	}
	return d.submitJob(ctx, printerID, jobs.KindReceipt, len(r.Lines), r.Segments())
}

// PrintText sends text to a printer as a single segment. The text is not
// interpreted, so control sequences reach the printer unchanged.
func (d *Dispatcher) PrintText(ctx context.Context, printerID, text string) (string, error) {
	if printerID == "" {
		return "", &order.ValidationError{Field: "printer", Reason: "must not be empty"}
	}
	return d.submitJob(ctx, printerID, jobs.KindText, 0, []bridge.Segment{bridge.Plain(text)})
}

// PrintRaw submits prepared segments to a printer. copies below one
// keeps the bridge default.
func (d *Dispatcher) PrintRaw(ctx context.Context, printerID string, copies int, segments []bridge.Segment) (string, error) {
	if printerID == "" {
		return "", &order.ValidationError{Field: "printer_id", Reason: "must not be empty"}
	}
	if len(segments) == 0 {
		return "", &order.ValidationError{Field: "data", Reason: "must not be empty"}
	}

	cfg := d.bridge.NewConfig(printerID)
	if copies > 0 {
		cfg.Copies = copies
	}
	return d.submitConfig(ctx, cfg, jobs.KindRaw, 0, segments)
}

func (d *Dispatcher) submit(ctx context.Context, printerID, kind string, items int, segments []bridge.Segment) error {
	_, err := d.submitJob(ctx, printerID, kind, items, segments)
	return err
}

func (d *Dispatcher) submitJob(ctx context.Context, printerID, kind string, items int, segments []bridge.Segment) (string, error) {
	return d.submitConfig(ctx, d.bridge.NewConfig(printerID), kind, items, segments)
}

func (d *Dispatcher) submitConfig(ctx context.Context, cfg bridge.Config, kind string, items int, segments []bridge.Segment) (string, error) {
	printerID := cfg.Printer
	job := jobs.NewRecord(printerID, kind, payloadSize(segments))
	job.Items = items
	d.record(ctx, job)

	start := time.Now()
	err := d.bridge.Print(ctx, cfg, segments)
	d.metrics.ObserveJob(printerID, kind, err, time.Since(start))

	if err != nil {
		d.log.Error("Print job failed", "job_id", job.ID, "printer", printerID, "kind", kind, "error", err)
		d.update(ctx, job.ID, jobs.StatusFailed, err.Error())
		return job.ID, &PrintJobError{PrinterID: printerID, Err: err}
	}

	d.log.Info("Print job completed", "job_id", job.ID, "printer", printerID, "kind", kind, "items", items)
	d.update(ctx, job.ID, jobs.StatusCompleted, "")
	return job.ID, nil
}

// reject records a job that fails before reaching the bridge
func (d *Dispatcher) reject(ctx context.Context, printerID, kind string, items int, cause error) error {
	job := jobs.NewRecord(printerID, kind, 0)
	job.Items = items
	job.Status = jobs.StatusFailed
	job.Error = cause.Error()
	completed := job.CreatedAt
	job.CompletedAt = &completed
	d.record(ctx, job)

	d.metrics.ObserveJob(printerID, kind, cause, 0)
	d.log.Error("Print job rejected", "job_id", job.ID, "printer", printerID, "kind", kind, "error", cause)
	return &PrintJobError{PrinterID: printerID, Err: cause}
}

func (d *Dispatcher) record(ctx context.Context, job jobs.Record) {
	if d.store == nil {
		return
	}
	if err := d.store.Add(ctx, job); err != nil {
		d.log.Warn("Failed to record job", "job_id", job.ID, "error", err)
	}
}

func (d *Dispatcher) update(ctx context.Context, id, status, errMsg string) {
	if d.store == nil {
		return
	}
	if err := d.store.UpdateStatus(ctx, id, status, errMsg); err != nil {
		d.log.Warn("Failed to update job", "job_id", id, "error", err)
	}
}

func payloadSize(segments []bridge.Segment) int {
	n := 0
	for _, s := range segments {
		n += len(s.Data)
	}
	return n
}
