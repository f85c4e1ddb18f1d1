package sqlpane

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sqlpane/sqlpane/internal/conn"
	"github.com/sqlpane/sqlpane/internal/execution"
	"github.com/sqlpane/sqlpane/internal/export"
	"github.com/sqlpane/sqlpane/internal/query"
	"github.com/sqlpane/sqlpane/internal/result"
)

var errNoResult = errors.New("no successful result to page through")

// Backend is what a session needs from an open database.
type Backend interface {
	query.Runner
	conn.Catalog
	Close() error
}

// Session owns one execution cell and polls it on behalf of the terminal.
type Session struct {
	backend      Backend
	dispatcher   *execution.Dispatcher
	cell         *execution.Cell
	pollInterval time.Duration
	out          io.Writer
	exportDir    string
}

func NewSession(backend Backend, pollInterval time.Duration, out io.Writer, logger *slog.Logger) (*Session, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	if out == nil {
		out = io.Discard
	}
	dispatcher, err := execution.NewDispatcher(1, backend, logger)
	if err != nil {
		return nil, err
	}
	return &Session{
		backend:      backend,
		dispatcher:   dispatcher,
		cell:         execution.NewCell(),
		pollInterval: pollInterval,
		out:          out,
	}, nil
}

func (s *Session) Close() error {
	return errors.Join(s.dispatcher.Close(), s.backend.Close())
}

// Execute dispatches sqlText and polls the cell until that generation
// finishes or ctx ends.
func (s *Session) Execute(ctx context.Context, sqlText string) (execution.Outcome, error) {
	token, err := s.dispatcher.Dispatch(ctx, s.cell, sqlText)
	if err != nil {
		return s.cell.Snapshot(), err
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		outcome := s.cell.Snapshot()
		if outcome.Token() == token && outcome.Status().Terminal() {
			return outcome, nil
		}
		select {
		case <-ctx.Done():
			return outcome, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Session) Current() execution.Outcome {
	return s.cell.Snapshot()
}

func (s *Session) Page(index int) (execution.Outcome, error) {
	outcome, err := s.cell.SetPage(index)
	if errors.Is(err, execution.ErrNotReady) {
		return outcome, errNoResult
	}
	if errors.Is(err, execution.ErrPageOutOfRange) {
		return outcome, fmt.Errorf("page %d is out of range (1-%d)", index+1, max(outcome.PageCount(), 1))
	}
	return outcome, err
}

// Step moves the viewport by delta pages.
func (s *Session) Step(delta int) (execution.Outcome, error) {
	return s.Page(s.cell.Snapshot().CurrentPageIndex() + delta)
}

func (s *Session) Last() (execution.Outcome, error) {
	pages := s.cell.Snapshot().PageCount()
	return s.Page(max(pages-1, 0))
}

func (s *Session) Export(target string, format export.Format) (string, error) {
	outcome := s.cell.Snapshot()
	if outcome.Status() != execution.StatusSuccess {
		return "", errNoResult
	}
	exporter, err := export.ForFormat(format)
	if err != nil {
		return "", err
	}
	return export.FileSink{Dir: s.exportDir}.Write(target, exporter, outcome.FullResult())
}

func (s *Session) PrintCurrent() error {
	return PrintOutcome(s.out, s.cell.Snapshot())
}

// PrintOutcome renders the current page as a tab aligned table followed by a
// position footer. Failed outcomes print the driver message.
func PrintOutcome(w io.Writer, outcome execution.Outcome) error {
	switch outcome.Status() {
	case execution.StatusRunning:
		_, err := fmt.Fprintln(w, "running")
		return err
	case execution.StatusError:
		_, err := fmt.Fprintf(w, "error: %s\n", outcome.ErrorMessage())
		return err
	}

	page := outcome.CurrentPage()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !page.IsEmpty() {
		_, _ = fmt.Fprintln(tw, strings.Join(page.Names(), "\t"))
		for i := range page.RowCount() {
			_, _ = fmt.Fprintln(tw, strings.Join(page.Row(i), "\t"))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, Footer(outcome))
	return err
}

// Footer reads "page x/y, rows a-b of n, t ms" with one-based positions.
func Footer(outcome execution.Outcome) string {
	total := outcome.RowCount()
	pages := max(outcome.PageCount(), 1)
	index := outcome.CurrentPageIndex()
	first, last := 0, 0
	if total > 0 {
		start, end := result.Bounds(total, index)
		first, last = start+1, end
	}
	return fmt.Sprintf("page %d/%d, rows %d-%d of %d, %d ms", index+1, pages, first, last, total, outcome.ElapsedMillis())
}
