// Package console prints colored status lines to an explicit stream.
package console

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Printer writes styled lines to one stream. Color is used only when the
// stream is a terminal, unless a profile is forced with WithProfile.
type Printer struct {
	w       io.Writer
	success lipgloss.Style
	warning lipgloss.Style
	fail    lipgloss.Style
}

type Option func(*lipgloss.Renderer)

// WithProfile forces a color profile instead of detecting it from w.
func WithProfile(p termenv.Profile) Option {
	return func(r *lipgloss.Renderer) {
		r.SetColorProfile(p)
	}
}

func New(w io.Writer, opts ...Option) *Printer {
	r := lipgloss.NewRenderer(w)
	for _, opt := range opts {
		opt(r)
	}
	return &Printer{
		w:       w,
		success: r.NewStyle().Foreground(lipgloss.ANSIColor(10)),
		warning: r.NewStyle().Foreground(lipgloss.ANSIColor(11)),
		fail:    r.NewStyle().Foreground(lipgloss.ANSIColor(9)),
	}
}

func (p *Printer) Successf(format string, args ...interface{}) {
	p.println(p.success, format, args...)
}

func (p *Printer) Warningf(format string, args ...interface{}) {
	p.println(p.warning, format, args...)
}

func (p *Printer) Failf(format string, args ...interface{}) {
	p.println(p.fail, format, args...)
}

func (p *Printer) println(style lipgloss.Style, format string, args ...interface{}) {
	_, _ = fmt.Fprintln(p.w, style.Render(fmt.Sprintf(format, args...)))
}
