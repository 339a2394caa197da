package metric

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"codeberg.org/mutker/rpimonitor/internal/errors"
)

// Category is an ordered group of metrics, e.g. CPU.
type Category struct {
	name    string
	metrics []*Metric
	index   map[string]*Metric
}

// NewCategory returns a category holding metrics in the given order.
// Metric names must be unique within the category.
func NewCategory(name string, metrics ...*Metric) (*Category, error) {
	c := &Category{
		name:    name,
		metrics: make([]*Metric, 0, len(metrics)),
		index:   make(map[string]*Metric, len(metrics)),
	}
	for _, m := range metrics {
		if _, dup := c.index[m.name]; dup {
			return nil, errors.New().WithMessage(errors.ErrInvalidArgument,
				fmt.Sprintf("category %s: duplicate metric %q", name, m.name))
		}
		c.metrics = append(c.metrics, m)
		c.index[m.name] = m
	}

	return c, nil
}

func (c *Category) Name() string { return c.name }

// Metrics returns the category's metrics in declaration order.
func (c *Category) Metrics() []*Metric {
	out := make([]*Metric, len(c.metrics))
	copy(out, c.metrics)
	return out
}

// Metric looks up a metric by name.
func (c *Category) Metric(name string) (*Metric, bool) {
	m, ok := c.index[name]
	return m, ok
}

// Registry is the fixed, ordered set of categories sampled by one process.
type Registry struct {
	categories []*Category
	index      map[string]*Category
}

// NewRegistry returns a registry holding categories in the given order.
func NewRegistry(categories ...*Category) (*Registry, error) {
	r := &Registry{
		categories: make([]*Category, 0, len(categories)),
		index:      make(map[string]*Category, len(categories)),
	}
	for _, c := range categories {
		if _, dup := r.index[c.name]; dup {
			return nil, errors.New().WithMessage(errors.ErrInvalidArgument,
				fmt.Sprintf("duplicate category %q", c.name))
		}
		r.categories = append(r.categories, c)
		r.index[c.name] = c
	}

	return r, nil
}

// Categories returns the categories in declaration order.
func (r *Registry) Categories() []*Category {
	out := make([]*Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// Lookup returns the metric at category/name.
func (r *Registry) Lookup(category, name string) (*Metric, bool) {
	c, ok := r.index[category]
	if !ok {
		return nil, false
	}
	return c.Metric(name)
}

// Each visits every metric in category then metric order, stopping at the
// first non-nil error.
func (r *Registry) Each(fn func(c *Category, m *Metric) error) error {
	for _, c := range r.categories {
		for _, m := range c.metrics {
			if err := fn(c, m); err != nil {
				return err
			}
		}
	}

	return nil
}

// Len returns the total number of metrics.
func (r *Registry) Len() int {
	n := 0
	for _, c := range r.categories {
		n += len(c.metrics)
	}
	return n
}

// Text renders every category as a header followed by its metric lines,
// with a blank line between categories.
func (r *Registry) Text() string {
	return r.TextWithHeader(nil)
}

// TextWithHeader is Text with each "NAME:" header passed through style.
func (r *Registry) TextWithHeader(style func(string) string) string {
	var b strings.Builder
	for i, c := range r.categories {
		if i > 0 {
			b.WriteString("\n")
		}
		header := c.name + ":"
		if style != nil {
			header = style(header)
		}
		b.WriteString(header)
		b.WriteString("\n")
		for _, m := range c.metrics {
			b.WriteString(m.Text())
			b.WriteString("\n")
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// MarshalJSON encodes {category: {metric: Export}} keeping declaration
// order, which a plain map would lose.
func (r *Registry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.categories {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, c.name); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for j, m := range c.metrics {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, m.name); err != nil {
				return nil, err
			}
			leaf, err := json.Marshal(m.Export())
			if err != nil {
				return nil, err
			}
			buf.Write(leaf)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	return nil
}
