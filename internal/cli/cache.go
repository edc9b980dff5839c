package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/thecopy-and-thepaste/DA/internal/config"
	"github.com/thecopy-and-thepaste/DA/internal/engine/batch"
	"github.com/thecopy-and-thepaste/DA/internal/engine/cache"
	"github.com/thecopy-and-thepaste/DA/internal/engine/cache/backends"
)

// maxRecordSize bounds a single JSON lines record read by cache warm.
const maxRecordSize = 16 << 20

// errMissingKey is returned by cache warm for a record without a usable key.
var errMissingKey = errors.New("record has no usable key")

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Read and write cached documents",
		Long: `Commands for the document cache. The store is selected by the cache.uri
setting or $CACHR_DB_CONNECTION (mongodb://, redis://, sqlite://, file:// or
memory://). Each collection holds at most one document per key.`,
	}
	cmd.AddCommand(
		newCacheGetCmd(),
		newCachePutCmd(),
		newCacheWarmCmd(),
		newCachePingCmd(),
	)
	return cmd
}

// openCachr returns the Cachr for collection over the shared connection.
func openCachr(ctx context.Context, collection string) (*cache.Cachr, error) {
	cfg := config.GetGlobalConfig()
	return cache.New(ctx, backends.Opener(cfg.Cache), collection)
}

func newCacheGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <key>",
		Short: "Print a cached document as JSON",
		Example: `  # Print the cached record for key 2878688
  da cache get taxa 2878688`,
		Args: cobra.ExactArgs(2), //nolint:mnd // collection and key
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCachr(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rec, err := c.Get(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding record: %w", err)
			}
			cmd.Println(string(data))
			return nil
		},
	}
}

func newCachePutCmd() *cobra.Command {
	var (
		data string
		file string
	)

	cmd := &cobra.Command{
		Use:   "put <collection> <key>",
		Short: "Cache one JSON document under a key",
		Example: `  # Cache an inline document
  da cache put taxa 2878688 --data '{"name":"Panthera onca"}'

  # Cache a document read from a file ("-" reads stdin)
  da cache put taxa 2878688 --file jaguar.json`,
		Args: cobra.ExactArgs(2), //nolint:mnd // collection and key
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte(data)
			if file != "" {
				var err error
				if raw, err = readInput(cmd, file); err != nil {
					return err
				}
			}

			doc, err := decodeDocument(raw)
			if err != nil {
				return err
			}

			c, err := openCachr(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := c.Upsert(cmd.Context(), args[1], doc); err != nil {
				return err
			}
			cmd.Printf("cached %s/%s\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "document as a JSON object")
	cmd.Flags().StringVar(&file, "file", "", "read the JSON document from a file (- for stdin)")
	cmd.MarkFlagsMutuallyExclusive("data", "file")
	cmd.MarkFlagsOneRequired("data", "file")

	return cmd
}

// warmEntry is one record of a cache warm input file.
type warmEntry struct {
	key string
	doc map[string]any
}

func newCacheWarmCmd() *cobra.Command {
	var (
		file         string
		keyField     string
		numBatches   int
		batchSize    int
		hideProgress bool
	)

	cmd := &cobra.Command{
		Use:   "warm <collection>",
		Short: "Cache every record of a JSON lines file",
		Long: `Reads one JSON object per line and caches each under the value of its key
field. Records are split into batches that are written concurrently by the
worker pool; writes to the store are serialized.`,
		Example: `  # Cache taxa.jsonl keyed by "id"
  da cache warm taxa --file taxa.jsonl

  # Key by "taxonKey", 16 batches, 4 workers
  da --workers 4 cache warm taxa --file taxa.jsonl --key-field taxonKey --num-batches 16`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			collection := args[0]

			entries, err := readWarmEntries(cmd, file, keyField)
			if err != nil {
				return err
			}

			c, err := openCachr(ctx, collection)
			if err != nil {
				return err
			}

			opts := []batch.Option{batch.WithName("warm " + collection)}
			if cmd.Flags().Changed("num-batches") {
				opts = append(opts, batch.WithNumBatches(numBatches))
			}
			if cmd.Flags().Changed("batch-size") {
				opts = append(opts, batch.WithBatchSize(batchSize))
			}
			if hideProgress || !isTerminal(os.Stderr) {
				opts = append(opts, batch.WithHideProgress())
			}

			keys, err := batch.Batchify(ctx, func(ctx context.Context, b batch.Batch, all []warmEntry) ([]string, error) {
				window := batch.Window(b, all)
				done := make([]string, 0, len(window))
				for _, e := range window {
					if err := c.Upsert(ctx, e.key, e.doc); err != nil {
						return nil, err
					}
					done = append(done, e.key)
				}
				return done, nil
			}, entries, opts...)
			if err != nil {
				return err
			}

			logger.Info().Ctx(ctx).
				Str("collection", collection).
				Int("records", len(keys)).
				Msg("cache warmed")

			p := message.NewPrinter(language.English)
			cmd.Print(p.Sprintf("cached %d records in %s\n", len(keys), collection))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON lines input (- for stdin)")
	cmd.Flags().StringVar(&keyField, "key-field", "id", "field holding each record's key")
	cmd.Flags().IntVar(&numBatches, "num-batches", 0, "number of batches (default from config)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "records per batch (overrides --num-batches)")
	cmd.Flags().BoolVar(&hideProgress, "hide-progress", false, "do not draw a progress bar")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newCachePingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the cache store is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			conn, err := cache.Shared(ctx, backends.Opener(config.GetGlobalConfig().Cache))
			if err != nil {
				return err
			}
			if err := conn.Ping(ctx); err != nil {
				return fmt.Errorf("pinging %s store: %w", conn.Backend().Name(), err)
			}
			cmd.Printf("%s store reachable\n", conn.Backend().Name())
			return nil
		},
	}
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// decodeDocument parses a JSON object.
func decodeDocument(raw []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if doc == nil {
		return nil, errors.New("decoding document: not a JSON object")
	}
	return doc, nil
}

func readWarmEntries(cmd *cobra.Command, path, keyField string) ([]warmEntry, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

	var entries []warmEntry
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		doc, err := decodeDocument(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		key, err := keyOf(doc, keyField)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, warmEntry{key: key, doc: doc})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return entries, nil
}

// keyOf renders doc[field] as a cache key. Strings and numbers are accepted.
func keyOf(doc map[string]any, field string) (string, error) {
	switch v := doc[field].(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("%w: %q is empty", errMissingKey, field)
		}
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case nil:
		return "", fmt.Errorf("%w: %q is missing", errMissingKey, field)
	default:
		return "", fmt.Errorf("%w: %q is a %T", errMissingKey, field, v)
	}
}
