// Package autofill orchestrates one autofill run: detect forms, match
// fields against stored memories, hand the proposal to the preview surface.
// Each run walks the states Idle, DetectingForms, ProcessingFields,
// BuildingPreview, then Done or Failed, with no state carried across runs.
// Every failure is converted into a RunResult; nothing escapes the boundary.
package autofill

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/superfill/sfc/connectivity"
	"github.com/superfill/sfc/formscan"
	"github.com/superfill/sfc/idgen"
	"github.com/superfill/sfc/kit"
	"github.com/superfill/sfc/match"
	"github.com/superfill/sfc/memstore"
	"github.com/superfill/sfc/observability"
	"github.com/superfill/sfc/preview"
)

// State is one stage of a run.
type State string

const (
	StateIdle             State = "idle"
	StateDetectingForms   State = "detecting_forms"
	StateProcessingFields State = "processing_fields"
	StateBuildingPreview  State = "building_preview"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// RunResult is the summary returned to whoever triggered the run.
type RunResult struct {
	Success        bool   `json:"success"`
	RunID          string `json:"runId"`
	FieldsDetected int    `json:"fieldsDetected"`
	MappingsFound  int    `json:"mappingsFound"`
	Error          string `json:"error,omitempty"`
}

// Service orchestrates autofill runs over the connectivity boundary.
type Service struct {
	router      *connectivity.Router
	store       *memstore.Store
	engine      *match.Engine
	events      *observability.EventLogger
	newRunID    idgen.Generator
	maxMemories int
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEventLogger enables run telemetry.
func WithEventLogger(l *observability.EventLogger) Option {
	return func(s *Service) { s.events = l }
}

// WithRunIDGenerator sets a custom run ID generator.
func WithRunIDGenerator(gen idgen.Generator) Option {
	return func(s *Service) { s.newRunID = gen }
}

// WithMaxMemories caps how many recent memories one run loads.
func WithMaxMemories(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxMemories = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a Service.
func New(router *connectivity.Router, store *memstore.Store, engine *match.Engine, opts ...Option) *Service {
	s := &Service{
		router:      router,
		store:       store,
		engine:      engine,
		newRunID:    idgen.Prefixed("run_", idgen.Default),
		maxMemories: match.DefaultConfig().MaxMemories,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run executes one autofill pass against the current page. Failures at any
// stage come back as {Success: false, Error}; Run never panics outward and
// never returns a Go error.
func (s *Service) Run(ctx context.Context, pageURL string) (result RunResult) {
	runID := s.newRunID()
	ctx = kit.WithRunID(ctx, runID)
	result.RunID = runID
	start := time.Now()
	state := StateIdle

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("autofill: run panicked", "run_id", runID, "state", state, "panic", r)
			result = RunResult{RunID: runID, Error: fmt.Sprintf("internal error in %s", state)}
		}
		s.logRunEnd(ctx, runID, pageURL, result, time.Since(start))
	}()

	s.logEvent(ctx, observability.RunEvent{
		RunID: runID, EventType: observability.EventRunStarted, PageURL: pageURL,
	})

	// Detect.
	state = StateDetectingForms
	detected, err := s.detectForms(ctx, pageURL)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	fields := flattenFields(detected.Forms)
	result.FieldsDetected = len(fields)
	if len(fields) == 0 {
		result.Success = true
		return result
	}

	// Match.
	state = StateProcessingFields
	recent, err := s.store.ListRecent(ctx, s.maxMemories)
	if err != nil {
		result.Error = fmt.Sprintf("load memories: %v", err)
		return result
	}
	memories := make([]memstore.MemoryEntry, len(recent))
	for i, m := range recent {
		memories[i] = *m
	}
	mappings := s.engine.MatchFields(ctx, fields, memories)
	result.MappingsFound = countMatched(mappings)

	// Preview.
	state = StateBuildingPreview
	payload := preview.SidebarPayload{
		Forms:          detected.Forms,
		Mappings:       mappings,
		ProcessingTime: time.Since(start).Milliseconds(),
	}
	if err := s.showPreview(ctx, payload); err != nil {
		result.Error = fmt.Sprintf("show preview: %v", err)
		return result
	}

	state = StateDone
	result.Success = true
	return result
}

// ProcessFields is the pure half of a run: fields plus memories to
// mappings, no detection, no preview dispatch.
func (s *Service) ProcessFields(ctx context.Context, fields []*formscan.DetectedField, memories []memstore.MemoryEntry) []match.FieldMapping {
	return s.engine.MatchFields(ctx, fields, memories)
}

func (s *Service) detectForms(ctx context.Context, pageURL string) (*DetectFormsResponse, error) {
	req, err := json.Marshal(DetectFormsRequest{URL: pageURL})
	if err != nil {
		return nil, fmt.Errorf("encode detect request: %w", err)
	}
	raw, err := s.router.Call(ctx, ServiceDetectForms, req)
	if err != nil {
		return nil, fmt.Errorf("detect forms: %w", err)
	}
	var resp DetectFormsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode detect response: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("detect forms: %s", resp.Error)
	}
	return &resp, nil
}

func (s *Service) showPreview(ctx context.Context, payload preview.SidebarPayload) error {
	req, err := json.Marshal(ShowPreviewRequest{Payload: payload})
	if err != nil {
		return err
	}
	raw, err := s.router.Call(ctx, ServiceShowPreview, req)
	if err != nil {
		return err
	}
	var resp ShowPreviewResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return err
	}
	if !resp.Shown {
		return fmt.Errorf("preview was not shown")
	}
	return nil
}

func (s *Service) logRunEnd(ctx context.Context, runID, pageURL string, res RunResult, elapsed time.Duration) {
	eventType := observability.EventRunCompleted
	if !res.Success {
		eventType = observability.EventRunFailed
	}
	s.logEvent(ctx, observability.RunEvent{
		RunID:          runID,
		EventType:      eventType,
		PageURL:        pageURL,
		FieldsDetected: res.FieldsDetected,
		MappingsFound:  res.MappingsFound,
		Success:        res.Success,
		Error:          res.Error,
		Duration:       elapsed,
	})
	s.logger.Info("autofill: run finished",
		"run_id", runID, "success", res.Success,
		"fields", res.FieldsDetected, "mappings", res.MappingsFound,
		"elapsed", elapsed)
}

func (s *Service) logEvent(ctx context.Context, ev observability.RunEvent) {
	if s.events != nil {
		s.events.LogEvent(ctx, ev)
	}
}

// flattenFields rebuilds matcher inputs from snapshots. Element stays nil:
// matching never touches the DOM.
func flattenFields(forms []formscan.DetectedFormSnapshot) []*formscan.DetectedField {
	var out []*formscan.DetectedField
	for _, form := range forms {
		for _, f := range form.Fields {
			out = append(out, &formscan.DetectedField{
				Opid:     f.Opid,
				FormOpid: f.FormOpid,
				Metadata: f.Metadata,
			})
		}
	}
	return out
}

func countMatched(mappings []match.FieldMapping) int {
	n := 0
	for _, m := range mappings {
		if m.MemoryID != nil {
			n++
		}
	}
	return n
}
