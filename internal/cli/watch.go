package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/engramlab/engram/internal/scheduler"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the memory tree and reconcile on schedule until interrupted",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.New(a.service, a.log.GetZerolog())
	if spec := a.cfg.Learner.ReconcileSchedule; spec != "" {
		if err := sched.AddReconcile(spec); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	fmt.Printf("Watching %s, press Ctrl+C to stop\n", a.cfg.MemoriesDir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println("Stopping")
	return nil
}
