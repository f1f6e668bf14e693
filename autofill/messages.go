package autofill

import (
	"github.com/superfill/sfc/formscan"
	"github.com/superfill/sfc/preview"
)

// Service names on the connectivity boundary.
const (
	ServiceDetectForms  = "detect_forms"
	ServiceShowPreview  = "show_preview"
	ServiceClosePreview = "close_preview"
	ServiceApplyFill    = "apply_fill"
)

// DetectFormsRequest asks the page side for a detection pass.
type DetectFormsRequest struct {
	URL string `json:"url,omitempty"`
}

// DetectFormsResponse is the detection result crossing the boundary:
// snapshots only, never live references.
type DetectFormsResponse struct {
	Success     bool                            `json:"success"`
	Forms       []formscan.DetectedFormSnapshot `json:"forms"`
	TotalFields int                             `json:"totalFields"`
	Error       string                          `json:"error,omitempty"`
}

// ShowPreviewRequest carries the sidebar payload to the page side.
type ShowPreviewRequest struct {
	Payload preview.SidebarPayload `json:"payload"`
}

// ShowPreviewResponse reports whether the preview opened.
type ShowPreviewResponse struct {
	Shown bool `json:"shown"`
}

// ApplyFillRequest asks the page side to write accepted mappings.
type ApplyFillRequest struct {
	Payload  preview.SidebarPayload `json:"payload"`
	Accepted []string               `json:"accepted,omitempty"`
}

// ApplyFillResponse summarises the apply pass.
type ApplyFillResponse struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}
