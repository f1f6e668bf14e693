// Package pagehost bridges a live browser page to the autofill services.
// It runs field detection against the page DOM and serves the preview
// sidebar operations for the most recent detection pass.
package pagehost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/superfill/sfc/autofill"
	"github.com/superfill/sfc/connectivity"
	"github.com/superfill/sfc/fieldmeta"
	"github.com/superfill/sfc/formscan"
	"github.com/superfill/sfc/preview"
)

// PageSession is the slice of a browser session the host needs. It is
// satisfied by *browser.Session.
type PageSession interface {
	preview.Injector
	HTML(ctx context.Context) (string, error)
	ControlRects(ctx context.Context) ([]fieldmeta.Rect, error)
	Close() error
}

// OpenFunc opens a session on the given page URL.
type OpenFunc func(ctx context.Context, pageURL string) (PageSession, error)

// Host serves detect_forms, show_preview, close_preview and apply_fill
// against one page at a time. A new detection pass replaces the previous
// session and its cached forms.
type Host struct {
	open   OpenFunc
	usage  preview.UsageRecorder
	logger *slog.Logger

	mu      sync.Mutex
	session PageSession
	sidebar *preview.Manager
}

type Option func(*Host)

func WithUsageRecorder(u preview.UsageRecorder) Option {
	return func(h *Host) { h.usage = u }
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) { h.logger = logger }
}

func New(open OpenFunc, opts ...Option) *Host {
	h := &Host{open: open, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// detectTimeout bounds a detection pass; navigation can hang indefinitely
// on dead hosts without it.
const detectTimeout = 45 * time.Second

// Register wires the host's services into the router. Every handler runs
// behind recovery, so a wedged page script surfaces as an error instead of
// taking the caller down. A failed apply falls back to closing the sidebar:
// the page must never be left with a stranded overlay.
func (h *Host) Register(r *connectivity.Router) {
	logging := connectivity.Logging(h.logger)
	recovery := connectivity.Recovery(h.logger)
	r.Register(autofill.ServiceDetectForms, h.handleDetect,
		logging, connectivity.Timeout(detectTimeout), recovery)
	r.Register(autofill.ServiceShowPreview, h.handleShow, logging, recovery)
	r.Register(autofill.ServiceClosePreview, h.handleClose, logging, recovery)
	r.Register(autofill.ServiceApplyFill, h.handleApply,
		logging,
		connectivity.WithFallback(h.handleApplyAbort, autofill.ServiceApplyFill, h.logger),
		recovery)
}

// Close releases the active session, if any.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropSessionLocked()
}

func (h *Host) dropSessionLocked() error {
	if h.session == nil {
		return nil
	}
	err := h.session.Close()
	h.session = nil
	h.sidebar = nil
	return err
}

func (h *Host) handleDetect(ctx context.Context, payload []byte) ([]byte, error) {
	var req autofill.DetectFormsRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("pagehost: decode detect request: %w", err)
	}
	resp := h.detect(ctx, req.URL)
	return json.Marshal(resp)
}

func (h *Host) detect(ctx context.Context, pageURL string) autofill.DetectFormsResponse {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.dropSessionLocked(); err != nil {
		h.logger.Warn("pagehost: closing stale session", "error", err)
	}

	sess, err := h.open(ctx, pageURL)
	if err != nil {
		return autofill.DetectFormsResponse{Error: fmt.Sprintf("open page: %v", err)}
	}

	forms, doc, err := h.scan(ctx, sess)
	if err != nil {
		sess.Close()
		return autofill.DetectFormsResponse{Error: err.Error()}
	}

	cache := formscan.NewCache()
	cache.Update(forms)

	h.session = sess
	sidebarOpts := []preview.Option{preview.WithLogger(h.logger)}
	if h.usage != nil {
		sidebarOpts = append(sidebarOpts, preview.WithUsageRecorder(h.usage))
	}
	h.sidebar = preview.NewManager(cache, doc, sess, sidebarOpts...)

	snaps := formscan.Snapshots(forms)
	total := 0
	for i := range snaps {
		total += len(snaps[i].Fields)
	}
	h.logger.Info("pagehost: detection complete",
		"url", pageURL, "forms", len(snaps), "fields", total)
	return autofill.DetectFormsResponse{Success: true, Forms: snaps, TotalFields: total}
}

// scan parses the page HTML and pairs every form control with its live
// bounding rect by document order.
func (h *Host) scan(ctx context.Context, sess PageSession) ([]*formscan.DetectedForm, *fieldmeta.Document, error) {
	raw, err := sess.HTML(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read page html: %w", err)
	}
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("parse page html: %w", err)
	}
	doc := fieldmeta.NewDocument(root)

	rects, err := sess.ControlRects(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("read control rects: %w", err)
	}
	controls := doc.Controls()
	if len(rects) != len(controls) {
		// The page mutated between the HTML snapshot and the rect pass.
		// Pair what lines up and let visibility filtering handle the rest.
		h.logger.Warn("pagehost: control count drift",
			"parsed", len(controls), "live", len(rects))
	}
	for i := 0; i < len(controls) && i < len(rects); i++ {
		doc.SetRect(controls[i], rects[i])
	}

	det := formscan.New(doc, formscan.WithLogger(h.logger))
	return det.DetectAll(), doc, nil
}

func (h *Host) handleShow(ctx context.Context, payload []byte) ([]byte, error) {
	var req autofill.ShowPreviewRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("pagehost: decode show request: %w", err)
	}
	sidebar, err := h.activeSidebar()
	if err != nil {
		return nil, err
	}
	shown := sidebar.Show(ctx, req.Payload)
	return json.Marshal(autofill.ShowPreviewResponse{Shown: shown})
}

func (h *Host) handleClose(ctx context.Context, payload []byte) ([]byte, error) {
	sidebar, err := h.activeSidebar()
	if err != nil {
		return nil, err
	}
	closed := sidebar.Close(ctx)
	return json.Marshal(autofill.ShowPreviewResponse{Shown: !closed})
}

func (h *Host) handleApply(ctx context.Context, payload []byte) ([]byte, error) {
	var req autofill.ApplyFillRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("pagehost: decode apply request: %w", err)
	}
	sidebar, err := h.activeSidebar()
	if err != nil {
		return nil, err
	}
	res := sidebar.Apply(ctx, req.Payload, req.Accepted)
	return json.Marshal(autofill.ApplyFillResponse{Applied: res.Applied, Skipped: res.Skipped})
}

// handleApplyAbort is the apply_fill fallback: close the sidebar, report
// nothing applied.
func (h *Host) handleApplyAbort(ctx context.Context, payload []byte) ([]byte, error) {
	if sidebar, err := h.activeSidebar(); err == nil {
		sidebar.Close(ctx)
	}
	return json.Marshal(autofill.ApplyFillResponse{})
}

func (h *Host) activeSidebar() (*preview.Manager, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sidebar == nil {
		return nil, fmt.Errorf("pagehost: no active page, run detection first")
	}
	return h.sidebar, nil
}
