package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/agentflare-ai/jsonpatch/v2"
)

func (c *cli) newWatchCmd() *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Print a patch every time FILE changes",
		Long: `watch observes a document file and prints one JSON patch per line each
time the file settles after a change. Bursts of writes within the debounce
window are folded into one patch. Unparsable intermediate states are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.watch(cmd.Context(), cmd.OutOrStdout(), args[0], debounce)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", 100*time.Millisecond, "quiet period before a change is reported")
	return cmd
}

// watchedDocument holds the latest parsed state of the watched file. It is
// read by the observer's flush goroutine through MarshalJSON.
type watchedDocument struct {
	mu    sync.Mutex
	value any
}

func (d *watchedDocument) set(v any) {
	d.mu.Lock()
	d.value = v
	d.mu.Unlock()
}

func (d *watchedDocument) MarshalJSON() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return json.Marshal(d.value)
}

// patchPrinter writes every batch as one line of JSON.
type patchPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger
}

func (p *patchPrinter) OnPatch(patch jsonpatch.Patch) {
	data, err := json.Marshal(patch)
	if err != nil {
		p.logger.Error("failed to encode patch", "error", err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s\n", data)
}

func (c *cli) watch(ctx context.Context, out io.Writer, path string, debounce time.Duration) error {
	path = filepath.Clean(path)
	f := formatOf(path, c.format)
	read := func() (any, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return decodeDocument(data, f)
	}

	initial, err := read()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	doc := &watchedDocument{value: initial}

	reg := jsonpatch.NewRegistry(jsonpatch.WithLogger(c.logger))
	printer := &patchPrinter{w: out, logger: c.logger}
	obs, err := reg.Observe(doc, printer, jsonpatch.WithScheduler(jsonpatch.NewDebounceScheduler(debounce)))
	if err != nil {
		return err
	}
	defer func() {
		if err := obs.Unobserve(); err != nil {
			c.logger.Error("final flush failed", "error", err)
		}
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file instead of writing it, so watch the
	// directory and filter by name.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	c.logger.Info("watching", "file", path, "observer", obs.ID(), "debounce", debounce)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			next, err := read()
			if err != nil {
				c.logger.Warn("skipping unreadable document", "file", path, "error", err)
				continue
			}
			c.logger.Debug("document changed", "file", path, "op", event.Op.String())
			doc.set(next)
			obs.Notify()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Error("watch error", "error", err)
		}
	}
}
