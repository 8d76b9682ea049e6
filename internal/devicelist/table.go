package devicelist

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/nerrad567/kapua-console/internal/device"
)

// Table holds the loaded devices with the active filters and sort order.
// It is not safe for concurrent use; Controller serialises access.
type Table struct {
	cfg     TableConfig
	devices []device.Device
	filters map[Column]string
	order   []OrderDef
}

// NewTable creates an empty table for cfg.
func NewTable(cfg TableConfig) *Table {
	return &Table{
		cfg:     cfg,
		filters: make(map[Column]string),
		order:   slices.Clone(cfg.Order),
	}
}

// Config returns the table layout.
func (t *Table) Config() TableConfig {
	return t.cfg
}

// Load replaces the table contents. Filters and sort order are kept.
func (t *Table) Load(devices []device.Device) {
	t.devices = slices.Clone(devices)
}

// Len returns the number of loaded devices, ignoring filters.
func (t *Table) Len() int {
	return len(t.devices)
}

// Contains reports whether a device with id is loaded.
func (t *Table) Contains(id string) bool {
	return slices.ContainsFunc(t.devices, func(d device.Device) bool { return d.ID == id })
}

// SetFilter narrows the rows to those whose column matches value.
// The connection column matches the status exactly (CONNECTED or
// DISCONNECTED); the others match case-insensitive substrings.
// An empty value removes the filter.
func (t *Table) SetFilter(col Column, value string) error {
	if _, ok := t.cfg.column(col); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, col)
	}
	if _, ok := t.cfg.filterFor(col); !ok {
		return fmt.Errorf("%w: %q", ErrNotFilterable, col)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		delete(t.filters, col)
		return nil
	}
	t.filters[col] = value
	return nil
}

// SetSlotFilter sets the filter bound to a named slot (e.g. "filter2").
func (t *Table) SetSlotFilter(slot, value string) error {
	f, ok := t.cfg.slot(slot)
	if !ok {
		return fmt.Errorf("%w: filter slot %q", ErrUnknownColumn, slot)
	}
	return t.SetFilter(f.Column, value)
}

// ClearFilters removes every filter.
func (t *Table) ClearFilters() {
	clear(t.filters)
}

// Filters returns the active filters.
func (t *Table) Filters() map[Column]string {
	out := make(map[Column]string, len(t.filters))
	for k, v := range t.filters {
		out[k] = v
	}
	return out
}

// SortBy replaces the sort order with a single column.
func (t *Table) SortBy(col Column, dir SortDir) error {
	def, ok := t.cfg.column(col)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, col)
	}
	if !def.Sortable || def.Value == nil {
		return fmt.Errorf("%w: %q", ErrNotSortable, col)
	}
	if dir != Desc {
		dir = Asc
	}
	t.order = []OrderDef{{Column: col, Dir: dir}}
	return nil
}

// Order returns the active sort order.
func (t *Table) Order() []OrderDef {
	return slices.Clone(t.order)
}

// Rows returns the visible rows: filtered, then sorted. Ties keep load order.
func (t *Table) Rows() []device.Device {
	rows := make([]device.Device, 0, len(t.devices))
	for _, d := range t.devices {
		if t.matches(d) {
			rows = append(rows, d)
		}
	}

	slices.SortStableFunc(rows, func(a, b device.Device) int {
		for _, o := range t.order {
			def, ok := t.cfg.column(o.Column)
			if !ok || def.Value == nil {
				continue
			}
			c := cmp.Compare(def.Value(a), def.Value(b))
			if o.Dir == Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	return rows
}

// FilterOptions returns the distinct, sorted values of a column across all
// loaded devices. Empty values are omitted.
func (t *Table) FilterOptions(col Column) ([]string, error) {
	def, ok := t.cfg.column(col)
	if !ok || def.Value == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, col)
	}

	seen := make(map[string]struct{})
	for _, d := range t.devices {
		if v := def.Value(d); v != "" {
			seen[v] = struct{}{}
		}
	}

	opts := make([]string, 0, len(seen))
	for v := range seen {
		opts = append(opts, v)
	}
	slices.Sort(opts)
	return opts, nil
}

func (t *Table) matches(d device.Device) bool {
	for col, want := range t.filters {
		def, ok := t.cfg.column(col)
		if !ok || def.Value == nil {
			continue
		}
		got := def.Value(d)
		if col == ColumnConnection {
			if !strings.EqualFold(got, want) {
				return false
			}
			continue
		}
		if !strings.Contains(strings.ToLower(got), strings.ToLower(want)) {
			return false
		}
	}
	return true
}
