package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/recstore/internal/models"
)

var representationCmd = &cobra.Command{
	Use:     "representation",
	Aliases: []string{"rep"},
	Short:   "Manage representation versions",
}

var repCreateCmd = &cobra.Command{
	Use:   "create <cloud-id> <schema> <provider-id>",
	Short: "Open a new mutable representation version",
	Args:  cobra.ExactArgs(3),
	Run:   runRepCreate,
}

var repShowCmd = &cobra.Command{
	Use:   "show <cloud-id> <schema>",
	Short: "Show the latest persistent version of a representation",
	Args:  cobra.ExactArgs(2),
	Run:   runRepShow,
}

var repVersionsCmd = &cobra.Command{
	Use:   "versions <cloud-id> <schema>",
	Short: "List all versions of a representation, newest first",
	Args:  cobra.ExactArgs(2),
	Run:   runRepVersions,
}

var repPersistCmd = &cobra.Command{
	Use:   "persist <cloud-id> <schema> <version>",
	Short: "Freeze a version, making it immutable and visible",
	Args:  cobra.ExactArgs(3),
	Run:   runRepPersist,
}

var repCopyCmd = &cobra.Command{
	Use:   "copy <cloud-id> <schema> <version>",
	Short: "Clone a version's files into a fresh mutable version",
	Args:  cobra.ExactArgs(3),
	Run:   runRepCopy,
}

var repDeleteCmd = &cobra.Command{
	Use:   "delete <cloud-id> <schema> [version]",
	Short: "Delete one mutable version, or a whole representation",
	Long: `Delete a representation version.

With a version argument only that version is deleted, and it must not
be persistent. Without one the whole representation goes, persistent
versions included.`,
	Args: cobra.RangeArgs(2, 3),
	Run:  runRepDelete,
}

var repShowVersion string

func init() {
	repShowCmd.Flags().StringVar(&repShowVersion, "version", "", "Show this exact version instead of the latest persistent one")

	representationCmd.AddCommand(repCreateCmd)
	representationCmd.AddCommand(repShowCmd)
	representationCmd.AddCommand(repVersionsCmd)
	representationCmd.AddCommand(repPersistCmd)
	representationCmd.AddCommand(repCopyCmd)
	representationCmd.AddCommand(repDeleteCmd)
}

func runRepCreate(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	rep, err := c.Records.CreateRepresentation(context.Background(), args[0], args[1], args[2])
	if err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Created version %s of %s/%s\n", rep.Version, rep.CloudID, rep.Schema)
}

func runRepShow(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ctx := context.Background()
	var rep *models.Representation
	var err error
	if repShowVersion != "" {
		rep, err = c.Records.GetRepresentationVersion(ctx, args[0], args[1], repShowVersion)
	} else {
		rep, err = c.Records.GetRepresentation(ctx, args[0], args[1])
	}
	if err != nil {
		exitError("%v", err)
	}
	printRepresentation(rep)
}

func runRepVersions(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	reps, err := c.Records.ListRepresentationVersions(context.Background(), args[0], args[1])
	if err != nil {
		exitError("%v", err)
	}

	green := color.New(color.FgGreen)
	for _, rep := range reps {
		if rep.Persistent {
			green.Printf("%s  persistent  %s  %d file(s)\n",
				rep.Version, rep.CreationDate.Format("2006-01-02 15:04:05"), len(rep.Files))
		} else {
			fmt.Printf("%s  mutable     %s  %d file(s)\n",
				rep.Version, rep.CreationDate.Format("2006-01-02 15:04:05"), len(rep.Files))
		}
	}
}

func runRepPersist(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	rep, err := c.Records.PersistRepresentation(context.Background(), args[0], args[1], args[2])
	if err != nil {
		exitError("%v", err)
	}
	color.New(color.FgGreen).Printf("Persisted version %s of %s/%s\n",
		shortID(rep.Version), rep.CloudID, rep.Schema)
}

func runRepCopy(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	rep, err := c.Records.CopyRepresentation(context.Background(), args[0], args[1], args[2])
	if err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Copied to new version %s (%d file(s))\n", rep.Version, len(rep.Files))
}

func runRepDelete(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ctx := context.Background()
	if len(args) == 3 {
		if err := c.Records.DeleteRepresentationVersion(ctx, args[0], args[1], args[2]); err != nil {
			exitError("%v", err)
		}
		fmt.Printf("Deleted version %s of %s/%s\n", shortID(args[2]), args[0], args[1])
		return
	}

	if err := c.Records.DeleteRepresentation(ctx, args[0], args[1]); err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Deleted representation %s/%s\n", args[0], args[1])
}

func printRepresentation(rep *models.Representation) {
	state := "mutable"
	if rep.Persistent {
		state = "persistent"
	}
	fmt.Printf("Representation: %s/%s\n", rep.CloudID, rep.Schema)
	fmt.Printf("Version:        %s (%s)\n", rep.Version, state)
	fmt.Printf("Provider:       %s\n", rep.ProviderID)
	fmt.Printf("Created:        %s\n", rep.CreationDate.Format("2006-01-02 15:04:05"))
	if len(rep.Files) == 0 {
		fmt.Println("Files:          none")
		return
	}
	fmt.Println("Files:")
	for _, f := range rep.Files {
		fmt.Printf("  %s  %s  %d bytes  md5=%s\n", f.FileName, f.MimeType, f.ContentLength, f.MD5)
	}
}
