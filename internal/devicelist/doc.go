// Package devicelist is the view-controller behind the console's device table.
//
// A Controller loads the device collection through a DeviceSource, keeps it in
// a Table (column filters, sorting, empty state) and tracks an explicit
// multi-row Selection. Deleting goes through DeleteSelected, which refuses an
// empty selection, asks a Confirmer, deletes with bounded concurrency and
// reloads the list afterwards.
//
// The table layout is data, not markup: DefaultTableConfig describes the
// columns, the initial order and the named filter slots.
//
// Usage:
//
//	ctrl := devicelist.NewController(api, api)
//	if err := ctrl.Load(ctx); err != nil {
//	    return err
//	}
//	_ = ctrl.Select("AQ", "AR")
//	report, err := ctrl.DeleteSelected(ctx, devicelist.AutoConfirm)
package devicelist
