package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage data providers",
}

var providerCreateCmd = &cobra.Command{
	Use:   "create <provider-id>",
	Short: "Register a data provider",
	Args:  cobra.ExactArgs(1),
	Run:   runProviderCreate,
}

var providerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List data providers",
	Run:   runProviderList,
}

var providerDeleteCmd = &cobra.Command{
	Use:   "delete <provider-id>",
	Short: "Delete a data provider",
	Long: `Delete a data provider. Fails while the provider still owns
data sets or representation versions.`,
	Args: cobra.ExactArgs(1),
	Run:  runProviderDelete,
}

var providerProperties []string

func init() {
	providerCreateCmd.Flags().StringArrayVar(&providerProperties, "property", nil, "Provider property as key=value (repeatable)")

	providerCmd.AddCommand(providerCreateCmd)
	providerCmd.AddCommand(providerListCmd)
	providerCmd.AddCommand(providerDeleteCmd)
}

func runProviderCreate(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	props := make(map[string]string)
	for _, p := range providerProperties {
		key, value, found := strings.Cut(p, "=")
		if !found {
			exitError("invalid property %q, expected key=value", p)
		}
		props[key] = value
	}

	provider, err := c.Providers.CreateProvider(context.Background(), args[0], props)
	if err != nil {
		exitError("%v", err)
	}
	fmt.Printf("Created provider '%s'\n", provider.ID)
}

func runProviderList(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ctx := context.Background()
	startFrom := ""
	for {
		providers, next, err := c.Providers.ListProviders(ctx, startFrom, 0)
		if err != nil {
			exitError("failed to list providers: %v", err)
		}
		for _, p := range providers {
			if len(p.Properties) > 0 {
				fmt.Printf("%s  %v\n", p.ID, p.Properties)
			} else {
				fmt.Println(p.ID)
			}
		}
		if next == "" {
			break
		}
		startFrom = next
	}
}

func runProviderDelete(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := c.Providers.DeleteProvider(context.Background(), args[0]); err != nil {
		exitError("%v", err)
	}
	color.New(color.FgGreen).Printf("Deleted provider '%s'\n", args[0])
}
