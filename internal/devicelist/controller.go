package devicelist

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/kapua-console/internal/device"
	"github.com/nerrad567/kapua-console/internal/infrastructure/logging"
)

// defaultDeleteConcurrency bounds parallel delete calls.
const defaultDeleteConcurrency = 4

// DeviceSource fetches the device collection.
type DeviceSource interface {
	GetDevices(ctx context.Context) (*device.ListResult[device.Device], error)
}

// DeviceDeleter removes a single device.
type DeviceDeleter interface {
	DeleteDevice(ctx context.Context, id string) error
}

// Confirmer asks the operator to approve deleting ids.
type Confirmer interface {
	Confirm(ctx context.Context, ids []string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, ids []string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, ids []string) (bool, error) {
	return f(ctx, ids)
}

// AutoConfirm approves every delete.
var AutoConfirm Confirmer = ConfirmFunc(func(context.Context, []string) (bool, error) {
	return true, nil
})

// DeleteFailure is one device that could not be deleted.
type DeleteFailure struct {
	ID  string
	Err error
}

// DeleteReport is the outcome of DeleteSelected.
type DeleteReport struct {
	Deleted []string
	Failed  []DeleteFailure
}

// Err joins the failures, or returns nil if every delete succeeded.
func (r *DeleteReport) Err() error {
	if r == nil || len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.ID, f.Err))
	}
	return errors.Join(errs...)
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfig replaces the default table layout.
func WithConfig(cfg TableConfig) Option {
	return func(c *Controller) { c.table = NewTable(cfg) }
}

// WithDeleteConcurrency bounds the number of parallel delete calls.
func WithDeleteConcurrency(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.deleteConcurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// Controller drives the device table.
type Controller struct {
	source  DeviceSource
	deleter DeviceDeleter
	logger  *logging.Logger

	deleteConcurrency int

	mu        sync.Mutex
	table     *Table
	selection *Selection
	loaded    bool
}

// NewController creates a controller over source and deleter.
func NewController(source DeviceSource, deleter DeviceDeleter, opts ...Option) *Controller {
	c := &Controller{
		source:            source,
		deleter:           deleter,
		logger:            logging.Default(),
		deleteConcurrency: defaultDeleteConcurrency,
		table:             NewTable(DefaultTableConfig()),
		selection:         NewSelection(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "devicelist")
	return c
}

// Load fetches the devices and replaces the table contents. On failure the
// table is emptied and shows its empty state. Selected IDs that are no
// longer present are dropped.
func (c *Controller) Load(ctx context.Context) error {
	list, err := c.source.GetDevices(ctx)
	if err == nil {
		err = device.Validate(list)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.table.Load(nil)
		c.selection.Clear()
		c.loaded = false
		c.logger.Warn("loading devices failed", "error", err)
		return fmt.Errorf("loading devices: %w", err)
	}

	c.table.Load(list.All())
	c.selection.Retain(c.table.Contains)
	c.loaded = true
	c.logger.Debug("devices loaded", "count", list.Len(), "limit_exceeded", list.LimitExceeded)
	return nil
}

// Loaded reports whether the last Load succeeded.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Rows returns the visible rows.
func (c *Controller) Rows() []device.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.Rows()
}

// Config returns the table layout.
func (c *Controller) Config() TableConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.Config()
}

// SetFilter sets a column filter. See Table.SetFilter.
func (c *Controller) SetFilter(col Column, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.SetFilter(col, value)
}

// SetSlotFilter sets the filter bound to a named slot.
func (c *Controller) SetSlotFilter(slot, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.SetSlotFilter(slot, value)
}

// ClearFilters removes every filter.
func (c *Controller) ClearFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table.ClearFilters()
}

// SortBy sorts by a single column.
func (c *Controller) SortBy(col Column, dir SortDir) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.SortBy(col, dir)
}

// FilterOptions returns the distinct values of a column.
func (c *Controller) FilterOptions(col Column) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.FilterOptions(col)
}

// Select adds ids to the selection. Every ID must be loaded; if any is not,
// nothing is selected. With single-select tables the selection is replaced.
func (c *Controller) Select(ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		if !c.table.Contains(id) {
			return fmt.Errorf("%w: %q", ErrUnknownDevice, id)
		}
	}

	if !c.table.Config().MultiSelect {
		c.selection.Clear()
		if len(ids) > 0 {
			ids = ids[len(ids)-1:]
		}
	}
	c.selection.Add(ids...)
	return nil
}

// Deselect removes ids from the selection.
func (c *Controller) Deselect(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.Remove(ids...)
}

// SelectAll selects every visible row and returns how many that was.
func (c *Controller) SelectAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows := c.table.Rows()
	for _, d := range rows {
		c.selection.Add(d.ID)
	}
	return len(rows)
}

// ClearSelection deselects everything.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.Clear()
}

// Selected returns the selected IDs in sorted order.
func (c *Controller) Selected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.IDs()
}

// DeleteSelected deletes the selected devices after confirm approves them.
//
// It returns ErrEmptySelection when nothing is selected and ErrCancelled when
// the confirmation is declined. Individual delete failures do not stop the
// others; they are listed in the report. Deleted IDs leave the selection and
// the list is reloaded. A reload error is returned alongside the report.
func (c *Controller) DeleteSelected(ctx context.Context, confirm Confirmer) (*DeleteReport, error) {
	ids := c.Selected()
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}
	if confirm == nil {
		return nil, ErrNoConfirmer
	}

	ok, err := confirm.Confirm(ctx, slices.Clone(ids))
	if err != nil {
		return nil, fmt.Errorf("confirming delete: %w", err)
	}
	if !ok {
		c.logger.Info("delete cancelled", "count", len(ids))
		return nil, ErrCancelled
	}

	report := c.deleteAll(ctx, ids)

	c.mu.Lock()
	c.selection.Remove(report.Deleted...)
	c.mu.Unlock()

	c.logger.Info("devices deleted", "deleted", len(report.Deleted), "failed", len(report.Failed))
	for _, f := range report.Failed {
		c.logger.Warn("device delete failed", "device_id", f.ID, "error", f.Err)
	}

	if err := c.Load(ctx); err != nil {
		return report, fmt.Errorf("reloading after delete: %w", err)
	}
	return report, nil
}

// deleteAll fans the deletes out with bounded concurrency.
func (c *Controller) deleteAll(ctx context.Context, ids []string) *DeleteReport {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		report DeleteReport
	)
	g.SetLimit(c.deleteConcurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			err := c.deleter.DeleteDevice(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, DeleteFailure{ID: id, Err: err})
				return nil
			}
			report.Deleted = append(report.Deleted, id)
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(report.Deleted)
	slices.SortFunc(report.Failed, func(a, b DeleteFailure) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return &report
}
