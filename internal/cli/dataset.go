package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage data sets and their assignments",
}

var datasetCreateCmd = &cobra.Command{
	Use:   "create <provider-id> <dataset-id>",
	Short: "Create a data set",
	Args:  cobra.ExactArgs(2),
	Run:   runDatasetCreate,
}

var datasetUpdateCmd = &cobra.Command{
	Use:   "update <provider-id> <dataset-id>",
	Short: "Update a data set's description",
	Args:  cobra.ExactArgs(2),
	Run:   runDatasetUpdate,
}

var datasetListCmd = &cobra.Command{
	Use:   "list <provider-id>",
	Short: "List a provider's data sets",
	Args:  cobra.ExactArgs(1),
	Run:   runDatasetList,
}

var datasetDeleteCmd = &cobra.Command{
	Use:   "delete <provider-id> <dataset-id>",
	Short: "Delete a data set and all its assignments",
	Args:  cobra.ExactArgs(2),
	Run:   runDatasetDelete,
}

var datasetAssignCmd = &cobra.Command{
	Use:   "assign <provider-id> <dataset-id> <cloud-id> <schema>",
	Short: "Assign a representation to a data set",
	Long: `Assign a representation to a data set.

Without --version the assignment is a live binding that always resolves
to the newest persistent version. With --version it is pinned to that
exact version. Assigning the same representation again replaces the
earlier assignment.`,
	Args: cobra.ExactArgs(4),
	Run:  runDatasetAssign,
}

var datasetUnassignCmd = &cobra.Command{
	Use:   "unassign <provider-id> <dataset-id> <cloud-id> <schema>",
	Short: "Remove a representation from a data set",
	Args:  cobra.ExactArgs(4),
	Run:   runDatasetUnassign,
}

var datasetContentsCmd = &cobra.Command{
	Use:   "contents <provider-id> <dataset-id>",
	Short: "List the resolved contents of a data set",
	Args:  cobra.ExactArgs(2),
	Run:   runDatasetContents,
}

var (
	datasetDescription   string
	datasetAssignVersion string
)

func init() {
	datasetCreateCmd.Flags().StringVar(&datasetDescription, "description", "", "Data set description")
	datasetUpdateCmd.Flags().StringVar(&datasetDescription, "description", "", "Data set description")
	datasetAssignCmd.Flags().StringVar(&datasetAssignVersion, "version", "", "Pin the assignment to an exact version")

	datasetCmd.AddCommand(datasetCreateCmd)
	datasetCmd.AddCommand(datasetUpdateCmd)
	datasetCmd.AddCommand(datasetListCmd)
	datasetCmd.AddCommand(datasetDeleteCmd)
	datasetCmd.AddCommand(datasetAssignCmd)
	datasetCmd.AddCommand(datasetUnassignCmd)
	datasetCmd.AddCommand(datasetContentsCmd)
}

func runDatasetCreate(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ds, err := c.DataSets.CreateDataSet(context.Background(), args[0], args[1], datasetDescription)
	if err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Created data set '%s/%s'\n", ds.ProviderID, ds.ID)
}

func runDatasetUpdate(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := c.DataSets.UpdateDataSet(context.Background(), args[0], args[1], datasetDescription); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Updated data set '%s/%s'\n", args[0], args[1])
}

func runDatasetList(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ctx := context.Background()
	startFrom := ""
	for {
		sets, next, err := c.DataSets.GetDataSets(ctx, args[0], startFrom, 0)
		if err != nil {
			exitError("failed to list data sets: %v", err)
		}
		for _, ds := range sets {
			if ds.Description != "" {
				fmt.Printf("%s  %s\n", ds.ID, ds.Description)
			} else {
				fmt.Println(ds.ID)
			}
		}
		if next == "" {
			break
		}
		startFrom = next
	}
}

func runDatasetDelete(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := c.DataSets.DeleteDataSet(context.Background(), args[0], args[1]); err != nil {
		exitError("%v", err)
	}
	color.New(color.FgGreen).Printf("Deleted data set '%s/%s'\n", args[0], args[1])
}

func runDatasetAssign(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	err := c.DataSets.AddAssignment(context.Background(), args[0], args[1], args[2], args[3], datasetAssignVersion)
	if err != nil {
		exitError("%v", err)
	}
	if datasetAssignVersion != "" {
		fmt.Printf("Assigned %s/%s@%s to '%s/%s'\n", args[2], args[3], shortID(datasetAssignVersion), args[0], args[1])
	} else {
		fmt.Printf("Assigned %s/%s (latest persistent) to '%s/%s'\n", args[2], args[3], args[0], args[1])
	}
}

func runDatasetUnassign(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	err := c.DataSets.RemoveAssignment(context.Background(), args[0], args[1], args[2], args[3])
	if err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Removed %s/%s from '%s/%s'\n", args[2], args[3], args[0], args[1])
}

func runDatasetContents(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ctx := context.Background()
	token := ""
	for {
		reps, next, err := c.DataSets.ListDataSet(ctx, args[0], args[1], token, 0)
		if err != nil {
			exitError("failed to list data set contents: %v", err)
		}
		for _, rep := range reps {
			state := "mutable"
			if rep.Persistent {
				state = "persistent"
			}
			fmt.Printf("%s/%s@%s  %s  %d file(s)\n",
				rep.CloudID, rep.Schema, shortID(rep.Version), state, len(rep.Files))
		}
		if next == "" {
			break
		}
		token = next
	}
}
