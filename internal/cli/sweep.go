package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Replay journaled index updates now",
	Long: `Replay journaled index updates now.

Index updates that failed while the index was unreachable wait in a
local journal and are normally replayed by a periodic background sweep.
This command forces an immediate replay, for use after an index outage.`,
	Run: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	pending, err := c.Journal.Len()
	if err != nil {
		exitError("failed to read journal: %v", err)
	}
	if pending == 0 {
		fmt.Println("Journal is empty, nothing to replay.")
		return
	}

	fmt.Printf("Replaying %d journaled update(s)...\n", pending)
	c.Sync.Sweep()

	remaining, err := c.Journal.Len()
	if err != nil {
		exitError("failed to read journal: %v", err)
	}
	if remaining == 0 {
		fmt.Println("All journaled updates replayed.")
	} else {
		fmt.Printf("%d update(s) still pending; is the index reachable?\n", remaining)
	}
}
