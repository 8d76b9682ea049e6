package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/kapua-console/internal/devicelist"
)

func (a *app) newDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "lists and deletes devices",
	}
	cmd.AddCommand(a.newDevicesListCmd(), a.newDevicesDeleteCmd())
	return cmd
}

// controller builds a loaded device list controller.
func (a *app) controller(cmd *cobra.Command, opts ...devicelist.Option) (*devicelist.Controller, error) {
	c, err := a.client()
	if err != nil {
		return nil, err
	}

	opts = append([]devicelist.Option{devicelist.WithLogger(a.logger(cmd.ErrOrStderr()))}, opts...)
	ctrl := devicelist.NewController(c, c, opts...)
	if err := ctrl.Load(cmd.Context()); err != nil {
		return nil, err
	}
	return ctrl, nil
}

func (a *app) newDevicesListCmd() *cobra.Command {
	var filters []string
	var sortCol string
	var desc bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "prints the device table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := a.controller(cmd)
			if err != nil {
				return err
			}

			for _, f := range filters {
				if err := applyFilter(ctrl, f); err != nil {
					return err
				}
			}
			if sortCol != "" {
				dir := devicelist.Asc
				if desc {
					dir = devicelist.Desc
				}
				if err := ctrl.SortBy(devicelist.Column(sortCol), dir); err != nil {
					return err
				}
			}

			return ctrl.Render(a.out)
		},
	}

	cmd.Flags().StringArrayVar(&filters, "filter", nil, `column=value or filterN=value, repeatable (columns: connection, clientId, displayName, osVersion, serialNumber)`)
	cmd.Flags().StringVar(&sortCol, "sort", "", `column to sort by (default: connection status, connected first)`)
	cmd.Flags().BoolVar(&desc, "desc", false, `sort descending`)
	return cmd
}

func (a *app) newDevicesDeleteCmd() *cobra.Command {
	var ids []string
	var yes bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "deletes the given devices after confirmation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := a.controller(cmd, devicelist.WithDeleteConcurrency(concurrency))
			if err != nil {
				return err
			}
			if err := ctrl.Select(ids...); err != nil {
				return err
			}

			var confirm devicelist.Confirmer = devicelist.AutoConfirm
			if !yes {
				confirm = newPromptConfirmer(a.in, a.out)
			}

			report, err := ctrl.DeleteSelected(cmd.Context(), confirm)
			if errors.Is(err, devicelist.ErrCancelled) {
				fmt.Fprintln(a.out, "Cancelled.")
				return nil
			}
			if report != nil {
				printReport(a.out, report)
			}
			if err != nil {
				return err
			}
			return report.Err()
		},
	}

	cmd.Flags().StringSliceVar(&ids, "id", nil, `device id to delete, repeatable or comma separated`)
	cmd.Flags().BoolVar(&yes, "yes", false, `skip the confirmation prompt`)
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, `parallel delete requests`)
	//nolint:errcheck // flag is defined above
	cmd.MarkFlagRequired("id")
	return cmd
}

// applyFilter parses "key=value" where key is a column or a filter slot.
func applyFilter(ctrl *devicelist.Controller, spec string) error {
	key, value, ok := strings.Cut(spec, "=")
	if !ok || key == "" {
		return fmt.Errorf("invalid filter %q, want column=value", spec)
	}
	if strings.HasPrefix(key, "filter") {
		return ctrl.SetSlotFilter(key, value)
	}
	return ctrl.SetFilter(devicelist.Column(key), value)
}

func printReport(w io.Writer, r *devicelist.DeleteReport) {
	for _, id := range r.Deleted {
		fmt.Fprintf(w, "deleted  %s\n", id)
	}
	for _, f := range r.Failed {
		fmt.Fprintf(w, "failed   %s: %v\n", f.ID, f.Err)
	}
}
