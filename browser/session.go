package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/superfill/sfc/fieldmeta"
)

// ControlKind selects the injection strategy for one control.
type ControlKind string

const (
	KindText     ControlKind = "text"
	KindCheckbox ControlKind = "checkbox"
	KindSelect   ControlKind = "select"
)

// Session is one page opened for an autofill run. Controls are addressed by
// their document-order index among input/select/textarea elements, the same
// enumeration fieldmeta.Document.Controls uses on the serialised DOM.
type Session struct {
	Page *rod.Page
	URL  string

	manager *Manager
}

// OpenSession creates a page, navigates to the URL and waits for load.
func (m *Manager) OpenSession(ctx context.Context, pageURL string) (*Session, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: not started")
	}

	var page *rod.Page
	var err error
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if len(m.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, m.cfg.ResourceBlocking); err != nil {
			m.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Session{Page: page, URL: pageURL, manager: m}, nil
}

// HTML serialises the page's current DOM.
func (s *Session) HTML(ctx context.Context) (string, error) {
	res, err := s.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// ControlRects returns the viewport bounding rect of every form control in
// document order. Entry i pairs with the i-th control of the serialised DOM.
func (s *Session) ControlRects(ctx context.Context) ([]fieldmeta.Rect, error) {
	res, err := s.Page.Context(ctx).Eval(`() =>
		Array.from(document.querySelectorAll("input, select, textarea")).map(el => {
			const r = el.getBoundingClientRect();
			return { x: r.x, y: r.y, width: r.width, height: r.height };
		})`)
	if err != nil {
		return nil, fmt.Errorf("browser: control rects: %w", err)
	}

	arr := res.Value.Arr()
	rects := make([]fieldmeta.Rect, len(arr))
	for i, v := range arr {
		rects[i] = fieldmeta.Rect{
			X:      v.Get("x").Num(),
			Y:      v.Get("y").Num(),
			Width:  v.Get("width").Num(),
			Height: v.Get("height").Num(),
		}
	}
	return rects, nil
}

// SetControlValue injects a value into the control at the given index using
// the kind-appropriate strategy, then dispatches synthetic input and change
// events so host-page frameworks observe the write. Returns false when the
// control no longer exists (page mutated since detection); that is a skip,
// not an error.
func (s *Session) SetControlValue(ctx context.Context, index int, value string, kind ControlKind) (bool, error) {
	res, err := s.Page.Context(ctx).Eval(`(index, value, kind) => {
		const els = document.querySelectorAll("input, select, textarea");
		const el = els[index];
		if (!el) return false;
		if (kind === "checkbox") {
			el.checked = value === "true";
		} else if (kind === "select" && el.tagName === "SELECT") {
			const v = value.toLowerCase();
			let hit = false;
			for (const opt of el.options) {
				if (opt.value.toLowerCase() === v || opt.text.toLowerCase() === v) {
					el.value = opt.value;
					hit = true;
					break;
				}
			}
			if (!hit) el.value = value;
		} else {
			el.value = value;
		}
		el.dispatchEvent(new Event("input", { bubbles: true }));
		el.dispatchEvent(new Event("change", { bubbles: true }));
		return true;
	}`, index, value, string(kind))
	if err != nil {
		return false, fmt.Errorf("browser: set control value: %w", err)
	}
	return res.Value.Bool(), nil
}

// HighlightControl toggles a visible outline on the control at index, used
// while the preview is open.
func (s *Session) HighlightControl(ctx context.Context, index int, on bool) error {
	_, err := s.Page.Context(ctx).Eval(`(index, on) => {
		const el = document.querySelectorAll("input, select, textarea")[index];
		if (!el) return;
		el.style.outline = on ? "2px solid #4f8ef7" : "";
	}`, index, on)
	if err != nil {
		return fmt.Errorf("browser: highlight control: %w", err)
	}
	return nil
}

// Close closes the page.
func (s *Session) Close() error {
	if s.Page != nil {
		return s.Page.Close()
	}
	return nil
}
