package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// newWatchCmd creates the "watch" subcommand for auto-rebuilding on config changes.
func newWatchCmd() *cobra.Command {
	var (
		debounce     time.Duration
		outputFormat string
		outputFile   string
	)

	cmd := &cobra.Command{
		Use:   "watch <config>",
		Short: "Rebuild the template when the configuration changes",
		Long: `Watch monitors the configuration file and rebuilds the template on every change.

Rapid successive writes are debounced into one rebuild. Editors that save by
renaming a temporary file over the config are handled by watching the
containing directory.

Examples:
    cicd-lambda watch pipeline.yaml -o template.json
    cicd-lambda watch pipeline.yaml --debounce 1s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), args[0], watchOptions{
				debounce:     debounce,
				outputFormat: outputFormat,
				outputFile:   outputFile,
			})
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format for build: json or yaml")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file for build (default: stdout)")

	return cmd
}

type watchOptions struct {
	debounce     time.Duration
	outputFormat string
	outputFile   string
}

// runWatch rebuilds until ctx is cancelled.
func runWatch(ctx context.Context, stdout io.Writer, configPath string, opts watchOptions) error {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	dir := filepath.Dir(absPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	slog.Info("watching", "config", absPath)

	rebuild(stdout, absPath, opts)

	var debounceTimer *time.Timer
	rebuildChan := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isConfigChange(event, absPath) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(opts.debounce, func() {
				select {
				case rebuildChan <- struct{}{}:
				default:
				}
			})

		case <-rebuildChan:
			slog.Info("change detected, rebuilding", "config", absPath)
			rebuild(stdout, absPath, opts)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)

		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			slog.Info("stopping watch")
			return nil
		}
	}
}

// isConfigChange reports whether event wrote or replaced the config file.
func isConfigChange(event fsnotify.Event, configPath string) bool {
	if filepath.Clean(event.Name) != configPath {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// rebuild logs failures instead of returning them so watching continues.
func rebuild(stdout io.Writer, configPath string, opts watchOptions) {
	built, err := buildPipeline(configPath)
	if err != nil {
		slog.Error("build failed", "error", err)
		return
	}
	data, err := encodeTemplate(built.template, opts.outputFormat)
	if err != nil {
		slog.Error("encoding template", "error", err)
		return
	}
	if err := writeOutput(stdout, opts.outputFile, data); err != nil {
		slog.Error("writing output", "error", err)
		return
	}
	slog.Info("build succeeded", "resources", len(built.template.Resources))
}
