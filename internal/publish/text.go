package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"codeberg.org/mutker/rpimonitor/internal/errors"
	"codeberg.org/mutker/rpimonitor/internal/metric"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Text writes the aligned table, one frame per tick.
type Text struct {
	w           io.Writer
	out         *termenv.Output
	clear       bool
	headerStyle func(string) string
}

// TextOption customises a Text publisher.
type TextOption func(*Text)

// WithClearScreen clears the terminal before each frame.
func WithClearScreen() TextOption {
	return func(t *Text) { t.clear = true }
}

// WithHeaderStyle renders category headers with style.
func WithHeaderStyle(style lipgloss.Style) TextOption {
	return func(t *Text) {
		t.headerStyle = func(s string) string { return style.Render(s) }
	}
}

func NewText(w io.Writer, opts ...TextOption) *Text {
	t := &Text{w: w}
	for _, opt := range opts {
		opt(t)
	}
	if t.clear {
		t.out = termenv.NewOutput(w)
	}

	return t
}

func (t *Text) Publish(_ context.Context, reg *metric.Registry) error {
	if t.clear {
		t.out.ClearScreen()
	}

	if _, err := fmt.Fprintln(t.w, reg.TextWithHeader(t.headerStyle)); err != nil {
		return errors.New().Wrap(errors.ErrPublishFailed, err)
	}

	return nil
}

// JSON writes one ordered JSON document per tick.
type JSON struct {
	w io.Writer
}

func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w}
}

func (j *JSON) Publish(_ context.Context, reg *metric.Registry) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return errors.New().Wrap(errors.ErrPublishFailed, err)
	}
	data = append(data, '\n')
	if _, err := j.w.Write(data); err != nil {
		return errors.New().Wrap(errors.ErrPublishFailed, err)
	}

	return nil
}
