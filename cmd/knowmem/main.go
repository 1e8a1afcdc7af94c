// Command knowmem is a CLI front end over the ingestion, indexing, query
// and snapshot packages, in the teacher's cmd/sqvect style: package-level
// flag vars, one cobra.Command per subcommand, a single openProvider
// helper, and a centralized init() registering flags and subcommands.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/knowmem/pkg/conversation"
	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/indexing"
	"github.com/liliang-cn/knowmem/pkg/know"
	"github.com/liliang-cn/knowmem/pkg/snapshot"
	"github.com/liliang-cn/knowmem/pkg/testembed"
	"github.com/liliang-cn/knowmem/pkg/timeindex"
	"github.com/liliang-cn/knowmem/storage"
	"github.com/liliang-cn/knowmem/storage/memprovider"
	"github.com/liliang-cn/knowmem/storage/sqliteprovider"
)

var (
	dbPath     string
	backend    string
	dimensions int
	nameTag    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "knowmem",
	Short: "CLI tool for conversational knowledge memory",
	Long:  `A command-line interface for ingesting, indexing and querying a conversation's extracted knowledge.`,
}

// openProvider opens the configured backend and wraps it in a
// conversation.Conversation. The embedder is always testembed's
// deterministic stand-in: the real embedding client is an external
// collaborator this module never constructs itself (spec §6).
func openProvider(ctx context.Context) (*conversation.Conversation, storage.Provider, error) {
	cache := embedcache.New(testembed.New(dimensions), embedcache.DefaultConfig())

	var prov storage.Provider
	switch backend {
	case "mem":
		prov = memprovider.New(cache)
	case "sqlite":
		cfg := sqliteprovider.DefaultConfig()
		cfg.Path = dbPath
		p, err := sqliteprovider.Open(ctx, cfg, cache)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite provider: %w", err)
		}
		prov = p
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (want mem or sqlite)", backend)
	}

	conv := conversation.New(nameTag, prov)
	return conv, prov, nil
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty conversation store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		_, prov, err := openProvider(ctx)
		if err != nil {
			return err
		}
		defer prov.Close()
		fmt.Printf("store initialized (backend=%s, dim=%d)\n", backend, dimensions)
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Append one message per non-blank line of a text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		conv, prov, err := openProvider(ctx)
		if err != nil {
			return err
		}
		defer prov.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		defer f.Close()

		now := time.Now()
		var msgs []know.Message
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			if line == "" {
				continue
			}
			ts := now
			msgs = append(msgs, know.Message{TextChunks: []string{line}, Timestamp: &ts})
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		first, err := conv.AddMessages(ctx, msgs)
		if err != nil {
			return fmt.Errorf("add messages: %w", err)
		}
		fmt.Printf("ingested %d messages starting at ordinal %d\n", len(msgs), first)
		return nil
	},
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the indexing pipeline over unindexed messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		conv, prov, err := openProvider(ctx)
		if err != nil {
			return err
		}
		defer prov.Close()

		pipeline := indexing.New(conv, indexing.DefaultConfig())
		results, err := pipeline.BuildIndex(ctx)
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		if results.SemanticRefs.Err != nil {
			return fmt.Errorf("build index: %w", results.SemanticRefs.Err)
		}
		fmt.Printf("indexed up to message %d\n", results.SemanticRefs.CompletedUpTo)
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the term, property, timestamp, message-text and related-terms indexes",
}

var queryTermCmd = &cobra.Command{
	Use:   "term <term>",
	Short: "Look up semantic refs by term",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		_, prov, err := openProvider(ctx)
		if err != nil {
			return err
		}
		defer prov.Close()

		hits, err := prov.TermIndex().LookupTerm(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(hits)
	},
}

var queryPropertyCmd = &cobra.Command{
	Use:   "property <name> <value>",
	Short: "Look up semantic refs by property name/value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		_, prov, err := openProvider(ctx)
		if err != nil {
			return err
		}
		defer prov.Close()

		hits, err := prov.PropertyIndex().LookupProperty(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(hits)
	},
}

var queryRangeCmd = &cobra.Command{
	Use:   "range <start> [end]",
	Short: "Look up messages whose timestamp falls in [start, end)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		_, prov, err := openProvider(ctx)
		if err != nil {
			return err
		}
		defer prov.Close()

		start, err := time.Parse(time.RFC3339, args[0])
		if err != nil {
			return fmt.Errorf("parse start: %w", err)
		}
		r := timeindex.DateRange{Start: start}
		if len(args) == 2 {
			end, err := time.Parse(time.RFC3339, args[1])
			if err != nil {
				return fmt.Errorf("parse end: %w", err)
			}
			r.End = &end
		}

		hits, err := prov.TimestampIndex().LookupRange(ctx, r)
		if err != nil {
			return err
		}
		return printJSON(hits)
	},
}

var queryMessagesCmd = &cobra.Command{
	Use:   "messages <text>",
	Short: "Look up messages whose text is close to the query text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		_, prov, err := openProvider(ctx)
		if err != nil {
			return err
		}
		defer prov.Close()

		maxHits, _ := cmd.Flags().GetInt("max-hits")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		hits, err := prov.MessageIndex().LookupMessages(ctx, args[0], maxHits, threshold)
		if err != nil {
			return err
		}
		return printJSON(hits)
	},
}

var queryRelatedCmd = &cobra.Command{
	Use:   "related <term>",
	Short: "Look up related terms (aliases and fuzzy matches)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		_, prov, err := openProvider(ctx)
		if err != nil {
			return err
		}
		defer prov.Close()

		maxHits, _ := cmd.Flags().GetInt("max-hits")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		hits, err := prov.RelatedTermsIndex().LookupRelatedTerms(ctx, args[0], maxHits, threshold)
		if err != nil {
			return err
		}
		return printJSON(hits)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <prefix>",
	Short: "Save the conversation to a <prefix>_data.json/_embeddings.bin pair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		conv, prov, err := openProvider(ctx)
		if err != nil {
			return err
		}
		defer prov.Close()

		if err := snapshot.Save(ctx, conv, args[0]); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		fmt.Printf("saved snapshot to %s_data.json / %s_embeddings.bin\n", args[0], args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <prefix>",
	Short: "Load a conversation from a <prefix>_data.json/_embeddings.bin pair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		_, prov, err := openProvider(ctx)
		if err != nil {
			return err
		}
		defer prov.Close()

		conv, err := snapshot.Load(ctx, args[0], prov, dimensions)
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		sizes, err := conv.Sizes(ctx)
		if err != nil {
			return err
		}
		return printJSON(sizes)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the size of every collection and index",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		conv, prov, err := openProvider(ctx)
		if err != nil {
			return err
		}
		defer prov.Close()

		sizes, err := conv.Sizes(ctx)
		if err != nil {
			return err
		}
		return printJSON(sizes)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "knowmem.db", "sqlite database path (backend=sqlite)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "sqlite", "storage backend: mem or sqlite")
	rootCmd.PersistentFlags().IntVar(&dimensions, "dimensions", 64, "embedding vector dimension")
	rootCmd.PersistentFlags().StringVar(&nameTag, "name-tag", "default", "conversation name tag")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	queryMessagesCmd.Flags().Int("max-hits", 10, "maximum results")
	queryMessagesCmd.Flags().Float64("threshold", 0.5, "minimum cosine score")
	queryRelatedCmd.Flags().Int("max-hits", 10, "maximum results")
	queryRelatedCmd.Flags().Float64("threshold", 0.5, "minimum cosine score")

	queryCmd.AddCommand(queryTermCmd, queryPropertyCmd, queryRangeCmd, queryMessagesCmd, queryRelatedCmd)
	rootCmd.AddCommand(initCmd, ingestCmd, buildCmd, queryCmd, exportCmd, importCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
