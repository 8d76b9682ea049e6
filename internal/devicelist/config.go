package devicelist

import (
	"github.com/nerrad567/kapua-console/internal/device"
)

// Column identifies a table column.
type Column string

// Table columns, in display order.
const (
	ColumnSelect       Column = "select"
	ColumnConnection   Column = "connection"
	ColumnClientID     Column = "clientId"
	ColumnDisplayName  Column = "displayName"
	ColumnOSVersion    Column = "osVersion"
	ColumnSerialNumber Column = "serialNumber"
)

// SortDir is a sort direction.
type SortDir string

const (
	Asc  SortDir = "asc"
	Desc SortDir = "desc"
)

// ColumnDef describes one column.
type ColumnDef struct {
	Key      Column
	Title    string
	Sortable bool

	// Value extracts the cell value used for sorting and filtering.
	// Nil for the selection column.
	Value func(device.Device) string
}

// FilterDef binds a column to a named filter slot.
type FilterDef struct {
	Slot        string
	Column      Column
	Placeholder string
	Default     bool
}

// OrderDef is one sort key.
type OrderDef struct {
	Column Column
	Dir    SortDir
}

// TableConfig is the full table layout.
type TableConfig struct {
	Columns     []ColumnDef
	Order       []OrderDef
	Filters     []FilterDef
	ZeroRecords string
	MultiSelect bool
}

// DefaultTableConfig returns the device table layout: a selection column,
// the connection status icon, then client ID, display name, OS version and
// serial number. Rows start ordered by connection status ascending, which
// lists connected devices first.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		Columns: []ColumnDef{
			{Key: ColumnSelect},
			{
				Key:      ColumnConnection,
				Sortable: true,
				Value:    func(d device.Device) string { return string(d.Status()) },
			},
			{
				Key:      ColumnClientID,
				Title:    "Client ID",
				Sortable: true,
				Value:    func(d device.Device) string { return d.ClientID },
			},
			{
				Key:      ColumnDisplayName,
				Title:    "Display Name",
				Sortable: true,
				Value:    func(d device.Device) string { return d.DisplayName },
			},
			{
				Key:      ColumnOSVersion,
				Title:    "OS Version",
				Sortable: true,
				Value:    func(d device.Device) string { return d.OSVersion },
			},
			{
				Key:      ColumnSerialNumber,
				Title:    "Serial Number",
				Sortable: true,
				Value:    func(d device.Device) string { return d.SerialNumber },
			},
		},
		Order: []OrderDef{{Column: ColumnConnection, Dir: Asc}},
		Filters: []FilterDef{
			{Slot: "filter1", Column: ColumnConnection, Placeholder: "Filter By Connection Status...", Default: true},
			{Slot: "filter2", Column: ColumnClientID, Placeholder: "Filter By Client ID..."},
			{Slot: "filter3", Column: ColumnDisplayName, Placeholder: "Filter By Display Name..."},
			{Slot: "filter4", Column: ColumnOSVersion, Placeholder: "Filter By OS Version..."},
			{Slot: "filter5", Column: ColumnSerialNumber, Placeholder: "Filter By Serial Number..."},
		},
		ZeroRecords: "No records found",
		MultiSelect: true,
	}
}

// column looks up a column definition by key.
func (c TableConfig) column(key Column) (ColumnDef, bool) {
	for _, col := range c.Columns {
		if col.Key == key {
			return col, true
		}
	}
	return ColumnDef{}, false
}

// filterFor returns the filter bound to a column.
func (c TableConfig) filterFor(key Column) (FilterDef, bool) {
	for _, f := range c.Filters {
		if f.Column == key {
			return f, true
		}
	}
	return FilterDef{}, false
}

// slot looks up a filter by slot name.
func (c TableConfig) slot(name string) (FilterDef, bool) {
	for _, f := range c.Filters {
		if f.Slot == name {
			return f, true
		}
	}
	return FilterDef{}, false
}
