package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/sentinel/internal/core/config"
	"github.com/vietddude/sentinel/internal/ops"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current status of a running sentinel instance",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	url := fmt.Sprintf("http://localhost:%d/health/detailed", cfg.Server.Port)
	resp, err := client.Get(url)
	if err != nil {
		slog.Error("Failed to reach sentinel", "url", url, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var report ops.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		slog.Error("Failed to decode status report", "error", err)
		os.Exit(1)
	}

	fmt.Printf("System: %s\n", report.SystemStatus)
	network := "offline"
	if report.Network.IsOnline {
		network = "online"
	}
	fmt.Printf("Network: %s (%s)\n", network, report.Network.ConnectionType)
	fmt.Printf("Queue: %d pending, %d in flight, %d succeeded, %d abandoned\n",
		report.Queue.Pending, report.Queue.InFlight,
		report.Queue.Succeeded, report.Queue.Abandoned)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "BOUNDARY\tSTATUS\tMANUAL\tAUTO")

	for id, b := range report.Boundaries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\n",
			id, b.Status.Status, b.Status.ManualRetryCount, b.Status.AutoRecoveryCount)
	}
	_ = w.Flush()
}
