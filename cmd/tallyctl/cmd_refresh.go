package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/tally/internal/domain/types"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [ledger-id...]",
	Short: "Reload ledgers from their spreadsheets and publish them",
	Long:  "Without arguments every ledger is reloaded by the service.\nWith ids, each named ledger is reloaded concurrently.",
	RunE:  runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := client()

	var results []types.Result
	if len(args) == 0 {
		all, err := c.RefreshAll(ctx)
		if err != nil {
			return err
		}
		results = all
	} else {
		ids := make([]int, len(args))
		for i, a := range args {
			id, err := strconv.Atoi(a)
			if err != nil {
				return fmt.Errorf("ledger id %q: %w", a, err)
			}
			ids[i] = id
		}
		results = make([]types.Result, len(ids))
		g, gctx := errgroup.WithContext(ctx)
		for i, id := range ids {
			g.Go(func() error {
				res, err := c.Refresh(gctx, id)
				res.LedgerID = id
				if err != nil && res.Error == "" {
					res.Error = err.Error()
				}
				results[i] = res
				return nil
			})
		}
		_ = g.Wait()
	}

	failed := 0
	out := cmd.OutOrStdout()
	for _, r := range results {
		if r.OK {
			fmt.Fprintf(out, "ledger %d: ok\n", r.LedgerID)
			continue
		}
		failed++
		fmt.Fprintf(out, "ledger %d: %s\n", r.LedgerID, r.Error)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d ledgers failed to refresh", failed, len(results))
	}
	return nil
}
