package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/cognicore/textscope/pkg/textscope/orchestrator"
)

const watchDebounce = 200 * time.Millisecond

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show corpus counts and the latest texts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := showStatus(cmd.Context(), cmd.OutOrStdout(), a); err != nil {
				return err
			}
			if !watch {
				return nil
			}
			return watchStatus(cmd.Context(), cmd.OutOrStdout(), a)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "refresh whenever the database changes")
	return cmd
}

func showStatus(ctx context.Context, w io.Writer, a *app) error {
	snap, err := a.session.RefreshStatus(ctx)
	if err != nil {
		return err
	}
	renderSnapshot(w, snap)
	return nil
}

// renderSnapshot prints the corpus overview as tables.
func renderSnapshot(w io.Writer, snap orchestrator.Snapshot) {
	cyan := color.New(color.FgCyan)
	cyan.Fprintf(w, "Texts: %d  Tokens: %d\n", snap.TextCount, snap.TokenCount)

	if len(snap.Latest) == 0 {
		fmt.Fprintln(w, "(no texts)")
	} else {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.SetTitle("Latest texts")
		t.AppendHeader(table.Row{"ID", "Length", "Tokens", "Avg len", "Min", "Max"})
		for _, txt := range snap.Latest {
			row := table.Row{txt.ID, txt.ContentLength, "-", "-", "-", "-"}
			if st, ok := snap.Stats[txt.ID]; ok {
				row = table.Row{txt.ID, txt.ContentLength, st.TokenCount, st.AvgLen, st.MinLen, st.MaxLen}
			}
			t.AppendRow(row)
		}
		t.Render()
	}

	ids := make([]string, len(snap.Recent))
	for i, id := range snap.Recent {
		ids[i] = fmt.Sprint(id)
	}
	fmt.Fprintf(w, "Recent IDs: %s\n", strings.Join(ids, ", "))

	if len(snap.Dangling) > 0 {
		red := color.New(color.FgRed)
		red.Fprintf(w, "Tokens reference missing texts: %v\n", snap.Dangling)
	}
}

// watchStatus re-renders the status whenever the database or its WAL file
// changes, until ctx is cancelled.
func watchStatus(ctx context.Context, w io.Writer, a *app) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dbPath, err := filepath.Abs(a.store.Path())
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(dbPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(dbPath), err)
	}
	base := filepath.Base(dbPath)

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if name := filepath.Base(event.Name); name != base && name != base+"-wal" {
				continue
			}
			debounce = time.After(watchDebounce)

		case <-debounce:
			debounce = nil
			a.logger.Debug("database changed, refreshing")
			fmt.Fprintln(w)
			if err := showStatus(ctx, w, a); err != nil {
				a.logger.Error("status refresh failed", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Error("watcher error", "error", err)
		}
	}
}
