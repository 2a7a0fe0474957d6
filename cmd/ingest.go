package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Load course documents into the knowledge base",
	Long: `Parses every .txt course document in the given directory (default:
the configured docs_dir), chunks the content, embeds each chunk, and
stores everything in PostgreSQL. Already-ingested courses are skipped,
so re-running is safe.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, logger, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a, logger)

	dir := a.Config.DocsDir
	if len(args) == 1 {
		dir = args[0]
	}

	stats, err := a.Ingestor.IngestDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	fmt.Printf("Courses added:   %d\n", stats.CoursesAdded)
	fmt.Printf("Courses skipped: %d\n", stats.CoursesSkipped)
	fmt.Printf("Chunks added:    %d\n", stats.ChunksAdded)
	return nil
}
