package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/timmy/shotlens/internal/config"
	"github.com/timmy/shotlens/internal/domain"
	"github.com/timmy/shotlens/internal/logger"
	"github.com/timmy/shotlens/internal/service"
	"github.com/timmy/shotlens/internal/source/localdir"
	"github.com/timmy/shotlens/internal/storage"
)

var (
	ingestCfg config.IngestConfig

	processMediaType string
	dirLimit         int
	dirWorkers       int
	dirForce         bool
	searchLimit      int
	searchBucket     string
)

var processCmd = &cobra.Command{
	Use:   "process <file>...",
	Short: "Run the screenshot pipeline on one or more image files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		failed := 0
		for _, path := range args {
			image, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			mediaType := processMediaType
			if mediaType == "" {
				mediaType = mediaTypeFor(path, image)
			}

			result, err := services.Pipeline.Process(logger.WithField(ctx, "file", path), image, mediaType)
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
				continue
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

var processDirCmd = &cobra.Command{
	Use:   "process-dir <dir>",
	Short: "Process every image under a directory with a worker pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ingester := services.Ingester
		if cmd.Flags().Changed("workers") || cmd.Flags().Changed("force") {
			cfg := ingestCfg
			if cmd.Flags().Changed("workers") {
				cfg.Workers = dirWorkers
			}
			if dirForce {
				cfg.SkipDuplicates = false
			}
			ingester = newIngester(cfg)
		}

		stats, err := ingester.Ingest(cmd.Context(), localdir.NewAdapter(args[0]), dirLimit)
		if err != nil {
			return fmt.Errorf("ingestion stopped: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "total=%d processed=%d skipped=%d failed=%d degraded=%d duration=%s\n",
			stats.TotalItems, stats.ProcessedItems, stats.SkippedItems, stats.FailedItems, stats.DegradedItems,
			stats.EndTime.Sub(stats.StartTime).Round(time.Millisecond))
		return nil
	},
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode <screenshot-id>",
	Short: "Geocode and cluster the places named in a stored screenshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := services.Pipeline.GeocodeAndCluster(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over stored screenshots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var bucket domain.Bucket
		if searchBucket != "" {
			b, ok := domain.ParseBucket(searchBucket)
			if !ok {
				return fmt.Errorf("unknown bucket %q", searchBucket)
			}
			bucket = b
		}
		matches, err := services.Search.Search(cmd.Context(), args[0], searchLimit, bucket)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no matches")
			return nil
		}
		for _, m := range matches {
			fmt.Fprintf(cmd.OutOrStdout(), "%.4f  %s  [%s]  %s\n", m.Score, m.Screenshot.ID, m.Screenshot.Bucket, m.Screenshot.Intent.Rationale)
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processMediaType, "media-type", "", "media type for every file (default: from extension or content)")

	processDirCmd.Flags().IntVarP(&dirLimit, "limit", "n", 0, "maximum number of images to process (0 = all)")
	processDirCmd.Flags().IntVarP(&dirWorkers, "workers", "w", 2, "number of concurrent workers")
	processDirCmd.Flags().BoolVar(&dirForce, "force", false, "process images even if an identical one is stored")

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVarP(&searchBucket, "bucket", "b", "", "restrict results to one bucket")

	rootCmd.AddCommand(processCmd, processDirCmd, geocodeCmd, searchCmd)
}

// mediaTypeFor guesses a file's media type from its extension, then its content.
func mediaTypeFor(path string, data []byte) string {
	if mt := storage.MediaTypeForExtension(filepath.Ext(path)); mt != "" {
		return mt
	}
	return http.DetectContentType(data)
}

func newIngester(cfg config.IngestConfig) *service.BatchIngester {
	return service.NewBatchIngester(services.Pipeline, services.Screenshots, service.BatchConfig{
		Workers:        cfg.Workers,
		SkipDuplicates: cfg.SkipDuplicates,
	})
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.New("failed to encode result: " + err.Error())
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
