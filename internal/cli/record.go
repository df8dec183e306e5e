package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Inspect and delete whole records",
}

var recordShowCmd = &cobra.Command{
	Use:   "show <cloud-id>",
	Short: "Show the latest persistent representation of each schema",
	Args:  cobra.ExactArgs(1),
	Run:   runRecordShow,
}

var recordDeleteCmd = &cobra.Command{
	Use:   "delete <cloud-id>",
	Short: "Delete every representation version of a record",
	Args:  cobra.ExactArgs(1),
	Run:   runRecordDelete,
}

func init() {
	recordCmd.AddCommand(recordShowCmd)
	recordCmd.AddCommand(recordDeleteCmd)
}

func runRecordShow(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	record, err := c.Records.GetRecord(context.Background(), args[0])
	if err != nil {
		exitError("%v", err)
	}

	fmt.Printf("Record: %s\n", record.CloudID)
	if len(record.Representations) == 0 {
		fmt.Println("No persistent representations yet.")
		return
	}
	for _, rep := range record.Representations {
		fmt.Printf("  %s@%s  %d file(s)  provider=%s\n",
			rep.Schema, shortID(rep.Version), len(rep.Files), rep.ProviderID)
	}
}

func runRecordDelete(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := c.Records.DeleteRecord(context.Background(), args[0]); err != nil {
		exitError("%v", err)
	}
	color.New(color.FgGreen).Printf("Deleted record %s\n", args[0])
}
