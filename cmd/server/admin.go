package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/lock"
	"github.com/warp/distribution-ledger/stock"
	"github.com/warp/distribution-ledger/store/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		logger.WithField("db", cfg.DBPath).Info("schema up to date")
		return nil
	},
}

var (
	closingWarehouse string
	closingPeriod    string
	closingActor     string
)

var closingCmd = &cobra.Command{
	Use:   "closing",
	Short: "Monthly closing administration",
}

var closingToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Lock or unlock a warehouse month",
	RunE: func(cmd *cobra.Command, args []string) error {
		ym, err := ledger.ParseYearMonth(closingPeriod)
		if err != nil {
			return err
		}
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		svc := stock.NewService(store, lock.Noop{}, logger)
		closed, err := svc.ToggleClosing(cmd.Context(), ledger.WarehouseID(closingWarehouse), ym, closingActor)
		if err != nil {
			return err
		}

		state := "unlocked"
		if closed {
			state = "locked"
		}
		fmt.Printf("%s %s %s\n", closingWarehouse, ym, state)
		return nil
	},
}

func init() {
	closingToggleCmd.Flags().StringVar(&closingWarehouse, "warehouse", "", "warehouse ID")
	closingToggleCmd.Flags().StringVar(&closingPeriod, "period", "", "month as YYYY-MM")
	closingToggleCmd.Flags().StringVar(&closingActor, "actor", "cli", "recorded as closed_by")
	closingToggleCmd.MarkFlagRequired("warehouse")
	closingToggleCmd.MarkFlagRequired("period")

	closingCmd.AddCommand(closingToggleCmd)
	rootCmd.AddCommand(migrateCmd, closingCmd)
}
