package devicelist

import "errors"

var (
	// ErrEmptySelection is returned by DeleteSelected when no device is selected.
	ErrEmptySelection = errors.New("devicelist: no devices selected")

	// ErrCancelled is returned by DeleteSelected when the confirmation is declined.
	ErrCancelled = errors.New("devicelist: delete cancelled")

	// ErrNoConfirmer is returned by DeleteSelected when no Confirmer is given.
	ErrNoConfirmer = errors.New("devicelist: confirmer is required")

	// ErrUnknownDevice is returned when selecting an ID that is not loaded.
	ErrUnknownDevice = errors.New("devicelist: device not in list")

	// ErrUnknownColumn is returned for a column key or filter slot the table does not define.
	ErrUnknownColumn = errors.New("devicelist: unknown column")

	// ErrNotSortable is returned by SortBy for a column without sorting.
	ErrNotSortable = errors.New("devicelist: column is not sortable")

	// ErrNotFilterable is returned by SetFilter for a column without a filter slot.
	ErrNotFilterable = errors.New("devicelist: column is not filterable")
)
