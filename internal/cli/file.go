package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Manage file payloads of a representation version",
}

var filePutCmd = &cobra.Command{
	Use:   "put <cloud-id> <schema> <version> <path>",
	Short: "Upload a file into a mutable version",
	Long: `Upload a file into a mutable version. The payload is read from
the given path, or from stdin when the path is '-'. Without --name the
file is stored under a generated name.`,
	Args: cobra.ExactArgs(4),
	Run:  runFilePut,
}

var fileGetCmd = &cobra.Command{
	Use:   "get <cloud-id> <schema> <version> <file-name>",
	Short: "Download a file payload to stdout",
	Args:  cobra.ExactArgs(4),
	Run:   runFileGet,
}

var fileDeleteCmd = &cobra.Command{
	Use:   "delete <cloud-id> <schema> <version> <file-name>",
	Short: "Remove a file from a mutable version",
	Args:  cobra.ExactArgs(4),
	Run:   runFileDelete,
}

var (
	filePutName string
	filePutMime string
	filePutMD5  string
	fileGetFrom int64
	fileGetTo   int64
)

func init() {
	filePutCmd.Flags().StringVar(&filePutName, "name", "", "File name inside the version")
	filePutCmd.Flags().StringVar(&filePutMime, "mime", "application/octet-stream", "MIME type")
	filePutCmd.Flags().StringVar(&filePutMD5, "md5", "", "Expected MD5 checksum; upload fails on mismatch")
	fileGetCmd.Flags().Int64Var(&fileGetFrom, "from", 0, "First byte offset")
	fileGetCmd.Flags().Int64Var(&fileGetTo, "to", -1, "Last byte offset (inclusive, -1 for end of file)")

	fileCmd.AddCommand(filePutCmd)
	fileCmd.AddCommand(fileGetCmd)
	fileCmd.AddCommand(fileDeleteCmd)
}

func runFilePut(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	var src io.Reader
	if args[3] == "-" {
		src = os.Stdin
	} else {
		f, err := os.Open(args[3])
		if err != nil {
			exitError("failed to open %s: %v", args[3], err)
		}
		defer f.Close()
		src = f
	}

	file, isNew, err := c.Records.PutContent(context.Background(),
		args[0], args[1], args[2], filePutName, filePutMime, filePutMD5, src)
	if err != nil {
		exitError("%v", err)
	}

	verb := "Stored"
	if !isNew {
		verb = "Replaced"
	}
	fmt.Printf("%s %s (%d bytes, md5=%s)\n", verb, file.FileName, file.ContentLength, file.MD5)
}

func runFileGet(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	_, err := c.Records.GetContent(context.Background(),
		args[0], args[1], args[2], args[3], fileGetFrom, fileGetTo, os.Stdout)
	if err != nil {
		exitError("%v", err)
	}
}

func runFileDelete(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	err := c.Records.DeleteContent(context.Background(), args[0], args[1], args[2], args[3])
	if err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Deleted %s from version %s\n", args[3], shortID(args[2]))
}
