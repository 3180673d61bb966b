package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/VoiceKit/runtime/catalog"
	"github.com/AltairaLabs/VoiceKit/runtime/logger"
)

// Record kinds accepted by --kind.
const (
	kindCategories = "categories"
	kindTopics     = "topics"
	kindSubtopics  = "subtopics"
)

var catalogSettings = newSettings()

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the content catalog",
	Long: `List catalog records as JSON. --filter keeps the records matching a
JMESPath filter such as "[?Order < ` + "`3`" + `]"; --query prints the raw result of
any JMESPath expression instead.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd, catalogSettings)
		if err != nil {
			return err
		}
		kind, _ := cmd.Flags().GetString("kind")
		category, _ := cmd.Flags().GetString("category")
		filter, _ := cmd.Flags().GetString("filter")
		query, _ := cmd.Flags().GetString("query")

		cat, closeCat, err := newCatalog(cfg.Catalog)
		if err != nil {
			return err
		}
		defer func() {
			if err := closeCat(); err != nil {
				logger.Debug("failed to close catalog cache", "error", err)
			}
		}()
		return listCatalog(cmd.Context(), cmd.OutOrStdout(), cat, listOptions{
			kind:     kind,
			category: category,
			filter:   filter,
			query:    query,
		})
	},
}

var catalogServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a catalog file over the content API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		file, _ := cmd.Flags().GetString("file")
		listen, _ := cmd.Flags().GetString("listen")
		static, err := catalog.LoadStatic(file)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, listen, catalog.NewHandler(static))
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogServeCmd)

	f := catalogCmd.Flags()
	f.String("kind", kindCategories, "Records to list: categories, topics or subtopics")
	f.String("category", "", "Only topics of this category (with --kind topics)")
	f.String("filter", "", "JMESPath filter applied to the records")
	f.String("query", "", "JMESPath expression printed as-is")
	f.String(flagName(keyCatalogURL), "", "Content catalog URL")
	f.String(flagName(keyRedis), "", "Redis address caching catalog lookups")
	if err := bindFlags(catalogSettings, f, keyCatalogURL, keyRedis); err != nil {
		panic(err)
	}

	sf := catalogServeCmd.Flags()
	sf.String("file", "catalog.yaml", "Catalog snapshot (YAML or JSON)")
	sf.String("listen", ":3000", "Listen address")
}

type listOptions struct {
	kind     string
	category string
	filter   string
	query    string
}

func listCatalog(ctx context.Context, out io.Writer, cat catalog.Catalog, opts listOptions) error {
	records, err := fetchRecords(ctx, cat, opts.kind, opts.category)
	if err != nil {
		return err
	}

	var result any = records
	switch {
	case opts.query != "":
		if result, err = catalog.Query(records, opts.query); err != nil {
			return err
		}
	case opts.filter != "":
		if result, err = catalog.Filter(records, opts.filter); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func fetchRecords(ctx context.Context, cat catalog.Catalog, kind, category string) ([]catalog.Record, error) {
	switch kind {
	case kindCategories:
		return cat.Categories(ctx)
	case kindTopics:
		if category != "" {
			return cat.Topics(ctx, category)
		}
		snap, err := cat.All(ctx)
		return snap.Topics, err
	case kindSubtopics:
		snap, err := cat.All(ctx)
		return snap.Subtopics, err
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}
