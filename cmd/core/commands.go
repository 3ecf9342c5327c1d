package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/syncledger/backend/internal/logging"
	"github.com/kimhsiao/syncledger/backend/internal/models"
	"github.com/kimhsiao/syncledger/backend/internal/sync"
	"github.com/kimhsiao/syncledger/backend/internal/sync/scheduler"
)

// newRunCmd starts the long-lived core: the engine plus, when auto_sync
// is enabled, the scheduler loop. It blocks until SIGINT/SIGTERM.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync core until interrupted",
		RunE:  runRun,
	}
}

func runRun(cmd *cobra.Command, _ []string) error {
	c, err := openCore()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sched := scheduler.New(c.engine, c.syncCfg.IntervalMinutes)
	if c.syncCfg.AutoSync {
		sched.StartAutoSync(ctx)
		defer sched.Stop()
		logging.Info("auto-sync enabled", map[string]interface{}{
			"interval_minutes": c.syncCfg.IntervalMinutes,
		})
	}

	logging.Info("SyncLedger Core ready")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logging.Info("shutting down")
	return nil
}

// newSyncCmd runs one sync round and prints the result.
func newSyncCmd() *cobra.Command {
	var incremental bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single sync round now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, incremental)
		},
	}
	cmd.Flags().BoolVar(&incremental, "incremental", false, "upload only records changed since the last successful sync")
	return cmd
}

func runSync(cmd *cobra.Command, incremental bool) error {
	c, err := openCore()
	if err != nil {
		return err
	}
	defer c.Close()

	var result *sync.SyncResult
	if incremental {
		since, ok := lastSyncTime(c)
		if !ok {
			return fmt.Errorf("no previous successful sync; run a full sync first")
		}
		result, err = c.engine.IncrementalSync(cmd.Context(), since)
	} else {
		result, err = c.engine.Sync(cmd.Context())
	}
	if result != nil {
		printResult(cmd, result)
	}
	return err
}

func lastSyncTime(c *core) (time.Time, bool) {
	raw, ok, err := c.repo.GetSetting(models.SettingLastSyncTime)
	if err != nil || !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func printResult(cmd *cobra.Command, result *sync.SyncResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "success:     %v\n", result.Success)
	fmt.Fprintf(out, "uploaded:    %d\n", result.UploadedCount)
	fmt.Fprintf(out, "downloaded:  %d\n", result.DownloadedCount)
	fmt.Fprintf(out, "failed:      %d\n", result.FailedCount)
	fmt.Fprintf(out, "transferred: %d bytes\n", result.BytesTransferred)
	if len(result.Conflicts) > 0 {
		fmt.Fprintf(out, "conflicts pending manual resolution: %d\n", len(result.Conflicts))
		for _, conflict := range result.Conflicts {
			if conflict.Report != nil {
				fmt.Fprintf(out, "  %s: %s\n", conflict.Path, conflict.Report.Message)
			}
		}
	}
	for _, e := range result.Errors {
		fmt.Fprintf(out, "error: %s\n", e)
	}
}

// newStatusCmd prints local record counts and sync provenance without
// touching the network.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local dataset and sync provenance",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	c, err := openCore()
	if err != nil {
		return err
	}
	defer c.Close()

	snap, _, err := c.serializer.Export()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, field := range []string{"categories", "tasks", "time_entries", "accounts", "transactions"} {
		fmt.Fprintf(out, "%-13s %d\n", field+":", snap.RecordCounts()[field])
	}

	if snap.IsFreshInstall {
		fmt.Fprintln(out, "never synced (fresh install)")
		return nil
	}
	if snap.LastSyncTime != nil {
		fmt.Fprintf(out, "last sync:    %s\n", snap.LastSyncTime.Format(time.RFC3339))
	}
	if snap.BaseRemoteHash != "" {
		fmt.Fprintf(out, "base remote:  %s\n", snap.BaseRemoteHash)
	}
	return nil
}
