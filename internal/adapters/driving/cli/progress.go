package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/kbase/internal/core/ports/driving"
)

// progressEnabled reports whether a progress bar can be drawn on stderr.
var progressEnabled = func() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// ingestProgress reports per-source outcomes as they arrive. On a terminal
// it draws a bar; otherwise it prints one line per source.
type ingestProgress struct {
	mu  sync.Mutex
	cmd *cobra.Command
	bar *progressbar.ProgressBar
}

func newIngestProgress(cmd *cobra.Command, total int, desc string) *ingestProgress {
	p := &ingestProgress{cmd: cmd}
	if total > 1 && progressEnabled() {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(desc),
			progressbar.OptionSetWidth(32),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	return p
}

// Report is the IngestAll progress callback.
func (p *ingestProgress) Report(o driving.IngestOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Add(1)
		return
	}
	printOutcome(p.cmd.OutOrStdout(), o)
}

// Finish clears the bar and, if one was drawn, prints the outcomes it hid.
func (p *ingestProgress) Finish(outcomes []driving.IngestOutcome) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	for _, o := range outcomes {
		printOutcome(p.cmd.OutOrStdout(), o)
	}
}

func printOutcome(w io.Writer, o driving.IngestOutcome) {
	if o.Err != nil {
		fmt.Fprintf(w, "  ✗ %s: %v\n", o.Source.DisplayName(), o.Err)
		return
	}
	fmt.Fprintf(w, "  ✓ %s (%d chunks) %s\n", o.Document.SourceName, o.Chunks, o.Document.ID)
}

// failures counts outcomes with an error.
func failures(outcomes []driving.IngestOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
