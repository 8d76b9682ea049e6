package devicelist

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nerrad567/kapua-console/internal/device"
)

// Status glyphs for the connection column.
const (
	glyphConnected    = "●"
	glyphDisconnected = "○"
)

// Render writes the visible rows as aligned text columns, or the
// zero-records message when there are none.
func (c *Controller) Render(w io.Writer) error {
	c.mu.Lock()
	cfg := c.table.Config()
	rows := c.table.Rows()
	selected := make(map[string]bool, c.selection.Len())
	for _, id := range c.selection.IDs() {
		selected[id] = true
	}
	c.mu.Unlock()

	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, cfg.ZeroRecords)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := make([]string, 0, len(cfg.Columns))
	for _, col := range cfg.Columns {
		header = append(header, strings.ToUpper(col.Title))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, d := range rows {
		cells := make([]string, 0, len(cfg.Columns))
		for _, col := range cfg.Columns {
			cells = append(cells, cell(col, d, selected[d.ID]))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	return tw.Flush()
}

func cell(col ColumnDef, d device.Device, selected bool) string {
	switch col.Key {
	case ColumnSelect:
		if selected {
			return "[x]"
		}
		return "[ ]"
	case ColumnConnection:
		if d.Connected() {
			return glyphConnected
		}
		return glyphDisconnected
	}
	if col.Value == nil {
		return ""
	}
	if v := col.Value(d); v != "" {
		return v
	}
	return "-"
}
