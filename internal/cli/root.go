// Package cli implements the command-line interface of the record
// repository.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/recstore/internal/config"
	"github.com/kilupskalvis/recstore/internal/content"
	"github.com/kilupskalvis/recstore/internal/identifiers"
	"github.com/kilupskalvis/recstore/internal/index"
	"github.com/kilupskalvis/recstore/internal/service"
	"github.com/kilupskalvis/recstore/internal/store"
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config    *config.Config
	Store     *store.Store
	Journal   *index.Journal
	Sync      *index.Synchronizer
	Providers *service.ProviderService
	Records   *service.RecordService
	DataSets  *service.DataSetService
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Sync != nil {
		c.Sync.Close()
	}
	if c.Journal != nil {
		c.Journal.Close()
	}
	if c.Store != nil {
		c.Store.Close()
	}
}

// initContext loads the configuration and opens the full stack: the
// metadata store, the content router, the index synchronizer and the
// services.
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		exitError("failed to open store: %v", err)
	}
	if err := st.Initialize(); err != nil {
		st.Close()
		exitError("failed to initialize store: %v", err)
	}

	logger := newLogger()

	inline := content.NewInlineStore(st.DB())
	var object content.Store
	if cfg.HasObjectStore() {
		object, err = content.NewObjectStore(content.ObjectStoreConfig{
			Endpoint:  cfg.ObjectStore.Endpoint,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			Bucket:    cfg.ObjectStore.Bucket,
			UseSSL:    cfg.ObjectStore.UseSSL,
		})
		if err != nil {
			st.Close()
			exitError("failed to create object store client: %v", err)
		}
	}
	router := content.NewRouter(inline, object, cfg.InlineThresholdBytes)

	client, err := index.NewWeaviateClient(cfg.WeaviateURL)
	if err != nil {
		st.Close()
		exitError("failed to create index client: %v", err)
	}

	journal, err := index.OpenJournal(cfg.JournalPath())
	if err != nil {
		st.Close()
		exitError("failed to open index journal: %v", err)
	}

	sync := index.NewSynchronizer(client, journal, logger, index.SynchronizerConfig{
		Workers:       cfg.Index.Workers,
		QueueSize:     cfg.Index.QueueSize,
		SweepInterval: cfg.SweepInterval(),
	})

	var resolver identifiers.Resolver
	if cfg.IdentifierServiceURL != "" {
		resolver = identifiers.NewHTTPResolver(cfg.IdentifierServiceURL)
	}

	providers, records, dataSets := service.New(service.Dependencies{
		Store:    st,
		Content:  router,
		Resolver: resolver,
		Index:    sync,
		Search:   client,
		Logger:   logger,
	})

	return &cmdContext{
		Config:    cfg,
		Store:     st,
		Journal:   journal,
		Sync:      sync,
		Providers: providers,
		Records:   records,
		DataSets:  dataSets,
	}
}

var verbose bool

// newLogger builds the CLI logger. Command output goes to stdout;
// structured logs stay on stderr and are quiet unless --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

var rootCmd = &cobra.Command{
	Use:   "recstore",
	Short: "Versioned record repository",
	Long: `recstore is a versioned repository for record representations.
Records carry schema-specific representations, each with an immutable
version history and named file payloads. Data sets group representation
versions across records, and a search index answers filtered queries
over the whole repository.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(providerCmd)
	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(representationCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(verifyCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
