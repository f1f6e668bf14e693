package formscan

import (
	"golang.org/x/net/html"

	"github.com/superfill/sfc/fieldmeta"
)

// DetectedField is one analysed form control. Element is borrowed from the
// parsed document: it is valid only for the lifetime of the detection pass
// and must never be persisted or serialised. The messaging boundary always
// converts to DetectedFieldSnapshot.
type DetectedField struct {
	Opid     string
	FormOpid string
	Element  *html.Node
	Metadata fieldmeta.Metadata
}

// DetectedForm is an ordered group of detected fields.
type DetectedForm struct {
	Opid   string
	Action string
	Method string
	Name   string
	Fields []*DetectedField
}

// DetectedFieldSnapshot is the DOM-reference-free copy of a DetectedField,
// safe to serialise across the messaging boundary.
type DetectedFieldSnapshot struct {
	Opid     string             `json:"opid"`
	FormOpid string             `json:"formOpid"`
	Metadata fieldmeta.Metadata `json:"metadata"`
}

// DetectedFormSnapshot is the serialisable copy of a DetectedForm.
type DetectedFormSnapshot struct {
	Opid   string                  `json:"opid"`
	Action string                  `json:"action,omitempty"`
	Method string                  `json:"method,omitempty"`
	Name   string                  `json:"name,omitempty"`
	Fields []DetectedFieldSnapshot `json:"fields"`
}

// Snapshot strips the element reference from a field.
func (f *DetectedField) Snapshot() DetectedFieldSnapshot {
	return DetectedFieldSnapshot{
		Opid:     f.Opid,
		FormOpid: f.FormOpid,
		Metadata: f.Metadata,
	}
}

// Snapshot strips element references from a form.
func (fm *DetectedForm) Snapshot() DetectedFormSnapshot {
	snap := DetectedFormSnapshot{
		Opid:   fm.Opid,
		Action: fm.Action,
		Method: fm.Method,
		Name:   fm.Name,
		Fields: make([]DetectedFieldSnapshot, 0, len(fm.Fields)),
	}
	for _, f := range fm.Fields {
		snap.Fields = append(snap.Fields, f.Snapshot())
	}
	return snap
}

// Snapshots converts a detection result for the messaging boundary.
func Snapshots(forms []*DetectedForm) []DetectedFormSnapshot {
	out := make([]DetectedFormSnapshot, 0, len(forms))
	for _, fm := range forms {
		out = append(out, fm.Snapshot())
	}
	return out
}
