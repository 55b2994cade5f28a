package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raggydev/raggy/internal/ingest"
)

var ingestFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a JSONL corpus, embed it, and store it for retrieval",
	Long: `Ingest reads a JSONL corpus (one {"title", "content"} object per line),
embeds the documents in batches, and upserts them into the document store.

Re-running ingest with the same corpus is safe: document ids derive from
content, so existing rows are updated instead of duplicated.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "path to the JSONL corpus (overrides corpus_path config)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	rt, err := setupRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	corpusPath := ingestFile
	if corpusPath == "" {
		corpusPath = rt.cfg.CorpusPath
	}
	if corpusPath == "" {
		return fmt.Errorf("no corpus file given: use --file or set corpus_path")
	}

	docs, err := ingest.LoadCorpusFile(corpusPath)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("Corpus is empty, nothing to ingest.")
		return nil
	}

	pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{
		Embedder:     rt.embedder,
		Upserter:     rt.store,
		PartitionKey: rt.cfg.PartitionKey,
		BatchSize:    rt.cfg.BatchSize,
		MaxRetries:   rt.cfg.MaxRetries,
		Logger:       rt.logger,
	})
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	fmt.Printf("Ingesting %d documents from %s into partition %q...\n",
		len(docs), corpusPath, rt.cfg.PartitionKey)

	result, err := pipeline.Run(ctx, docs)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("Done: %d documents in %d batches (%.1fs)\n",
		result.Ingested, result.Batches, result.Duration.Seconds())
	return nil
}
