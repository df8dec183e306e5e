package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/recstore/internal/config"
	"github.com/kilupskalvis/recstore/internal/index"
	"github.com/kilupskalvis/recstore/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new record repository",
	Long: `Initialize a new record repository in the current directory.
This creates a .recstore directory holding the metadata database, the
index journal and the configuration.`,
	Run: runInit,
}

var (
	initURL           string
	initIdentifierURL string
)

func init() {
	initCmd.Flags().StringVar(&initURL, "url", "http://localhost:8080", "Weaviate server URL for the search index")
	initCmd.Flags().StringVar(&initIdentifierURL, "identifier-url", "", "Identifier service URL (optional)")
}

func runInit(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	// Check if already initialized
	if _, err := config.FindRoot(); err == nil {
		exitError("record repository already exists")
	}

	fmt.Printf("Initializing record repository...\n")
	fmt.Printf("Index URL: %s\n", initURL)

	// Test connection to the index
	client, err := index.NewWeaviateClient(initURL)
	if err != nil {
		exitError("failed to create index client: %v", err)
	}

	fmt.Printf("Connecting to index...\n")
	if err := client.Ping(ctx); err != nil {
		exitError("failed to connect to index: %v", err)
	}

	if err := client.EnsureSchema(ctx); err != nil {
		exitError("failed to create index schema: %v", err)
	}

	cfg, err := config.Initialize(initURL)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}

	if initIdentifierURL != "" {
		cfg.IdentifierServiceURL = initIdentifierURL
		if err := cfg.Save(); err != nil {
			fmt.Printf("Warning: Could not save identifier service URL: %v\n", err)
		}
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		exitError("failed to create store: %v", err)
	}
	defer st.Close()

	if err := st.Initialize(); err != nil {
		exitError("failed to initialize store: %v", err)
	}

	fmt.Printf("\nInitialized empty record repository in .recstore/\n")
	fmt.Printf("Indexing to %s\n", initURL)
}
