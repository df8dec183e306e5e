package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/recstore/internal/index"
	"github.com/kilupskalvis/recstore/internal/store"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Query the search index for representation versions",
	Long: `Query the search index for representation versions by schema,
provider, persistence state, data set membership and creation date.
Results come from the asynchronous index and can lag recent writes.`,
	Run: runSearch,
}

var (
	searchSchema     string
	searchProvider   string
	searchPersistent bool
	searchMutable    bool
	searchProviderDS string
	searchDataSet    string
	searchAfter      string
	searchBefore     string
	searchOffset     int
	searchLimit      int
)

func init() {
	searchCmd.Flags().StringVar(&searchSchema, "schema", "", "Filter by schema")
	searchCmd.Flags().StringVar(&searchProvider, "provider", "", "Filter by provider id")
	searchCmd.Flags().BoolVar(&searchPersistent, "persistent", false, "Only persistent versions")
	searchCmd.Flags().BoolVar(&searchMutable, "mutable", false, "Only mutable versions")
	searchCmd.Flags().StringVar(&searchProviderDS, "dataset-provider", "", "Filter by data set owner (with --dataset)")
	searchCmd.Flags().StringVar(&searchDataSet, "dataset", "", "Filter by data set id (with --dataset-provider)")
	searchCmd.Flags().StringVar(&searchAfter, "created-after", "", "Only versions created after this RFC 3339 time")
	searchCmd.Flags().StringVar(&searchBefore, "created-before", "", "Only versions created before this RFC 3339 time")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "Result offset")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "Result limit")
}

func runSearch(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	params := index.SearchParams{
		Schema:     searchSchema,
		ProviderID: searchProvider,
	}
	if searchPersistent && searchMutable {
		exitError("--persistent and --mutable are mutually exclusive")
	}
	if searchPersistent {
		t := true
		params.Persistent = &t
	}
	if searchMutable {
		f := false
		params.Persistent = &f
	}
	if (searchDataSet == "") != (searchProviderDS == "") {
		exitError("--dataset and --dataset-provider must be used together")
	}
	if searchDataSet != "" {
		params.DataSet = store.EncodeDataSetKey(searchProviderDS, searchDataSet)
	}
	if searchAfter != "" {
		t, err := time.Parse(time.RFC3339, searchAfter)
		if err != nil {
			exitError("invalid --created-after: %v", err)
		}
		params.CreatedAfter = t
	}
	if searchBefore != "" {
		t, err := time.Parse(time.RFC3339, searchBefore)
		if err != nil {
			exitError("invalid --created-before: %v", err)
		}
		params.CreatedBefore = t
	}

	docs, err := c.DataSets.Search(context.Background(), params, searchOffset, searchLimit)
	if err != nil {
		exitError("search failed: %v", err)
	}

	if len(docs) == 0 {
		fmt.Println("No matches.")
		return
	}
	for _, doc := range docs {
		state := "mutable"
		if doc.Persistent {
			state = "persistent"
		}
		fmt.Printf("%s/%s@%s  %s  provider=%s  %s\n",
			doc.CloudID, doc.Schema, shortID(doc.VersionID), state,
			doc.ProviderID, doc.CreationDate.Format("2006-01-02 15:04:05"))
	}
}
