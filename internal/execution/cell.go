// Package execution tracks the lifecycle of dispatched queries. A Cell holds
// the latest immutable Outcome behind an atomic pointer; readers never lock,
// writers serialize on the cell mutex.
package execution

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sqlpane/sqlpane/internal/observability"
	"github.com/sqlpane/sqlpane/internal/query"
	"github.com/sqlpane/sqlpane/internal/result"
)

var (
	ErrNotReady       = errors.New("execution has no successful result")
	ErrPageOutOfRange = errors.New("page index out of range")
)

type Status int

const (
	StatusRunning Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Token identifies one dispatch on a cell. Tokens only grow.
type Token uint64

// Dataset is the decoded result of a successful execution. It is never
// modified after publication.
type Dataset struct {
	full          result.Result
	rowCount      int
	pageCount     int
	elapsedMillis int64
}

func newDataset(execution query.Execution) *Dataset {
	rows := execution.Result.RowCount()
	return &Dataset{
		full:          execution.Result,
		rowCount:      rows,
		pageCount:     result.PageCount(rows),
		elapsedMillis: execution.ElapsedMillis(),
	}
}

func (d *Dataset) Result() result.Result { return d.full }
func (d *Dataset) RowCount() int         { return d.rowCount }
func (d *Dataset) PageCount() int        { return d.pageCount }
func (d *Dataset) ElapsedMillis() int64  { return d.elapsedMillis }

// Viewport is the page currently shown over a dataset.
type Viewport struct {
	Index int
	Page  result.Result
}

// viewportAt computes page index over d. Without any pages the view is the
// whole result.
func viewportAt(d *Dataset, index int) Viewport {
	if d.pageCount == 0 {
		return Viewport{Index: 0, Page: d.full}
	}
	return Viewport{Index: index, Page: result.Slice(d.full, index)}
}

type Outcome struct {
	status   Status
	token    Token
	dataset  *Dataset
	viewport Viewport
	message  string
}

func (o Outcome) Status() Status { return o.status }
func (o Outcome) Token() Token   { return o.token }

// Dataset is nil unless the outcome is a success.
func (o Outcome) Dataset() *Dataset { return o.dataset }

func (o Outcome) Viewport() Viewport { return o.viewport }

// ErrorMessage is the raw driver message of a failed execution.
func (o Outcome) ErrorMessage() string { return o.message }

func (o Outcome) FullResult() result.Result {
	if o.dataset == nil {
		return result.Result{}
	}
	return o.dataset.full
}

func (o Outcome) CurrentPage() result.Result { return o.viewport.Page }
func (o Outcome) CurrentPageIndex() int      { return o.viewport.Index }

func (o Outcome) RowCount() int {
	if o.dataset == nil {
		return 0
	}
	return o.dataset.rowCount
}

func (o Outcome) PageCount() int {
	if o.dataset == nil {
		return 0
	}
	return o.dataset.pageCount
}

func (o Outcome) ElapsedMillis() int64 {
	if o.dataset == nil {
		return 0
	}
	return o.dataset.elapsedMillis
}

// Cell reads as Running until its first dispatch completes.
type Cell struct {
	mu      sync.Mutex
	latest  Token
	current atomic.Pointer[Outcome]
}

func NewCell() *Cell {
	c := &Cell{}
	c.current.Store(&Outcome{status: StatusRunning})
	return c
}

// Begin starts a new generation. Any completion carrying an older token is
// discarded from now on.
func (c *Cell) Begin() Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest++
	c.current.Store(&Outcome{status: StatusRunning, token: c.latest})
	return c.latest
}

// Complete publishes a success for token. It reports false when token is
// stale or its generation already finished.
func (c *Cell) Complete(token Token, execution query.Execution) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acceptLocked(token) {
		return false
	}
	dataset := newDataset(execution)
	c.current.Store(&Outcome{
		status:   StatusSuccess,
		token:    token,
		dataset:  dataset,
		viewport: viewportAt(dataset, 0),
	})
	return true
}

// Fail publishes an error for token under the same rules as Complete.
func (c *Cell) Fail(token Token, message string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.acceptLocked(token) {
		return false
	}
	c.current.Store(&Outcome{status: StatusError, token: token, message: message})
	return true
}

func (c *Cell) acceptLocked(token Token) bool {
	if token != c.latest {
		observability.IncrementStaleCompletion()
		return false
	}
	return !c.current.Load().status.Terminal()
}

// Snapshot returns the latest published outcome.
func (c *Cell) Snapshot() Outcome {
	return *c.current.Load()
}

// SetPage moves the viewport of a successful outcome. The dataset is shared
// with the previous snapshot.
func (c *Cell) SetPage(index int) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.current.Load()
	if cur.status != StatusSuccess || cur.dataset == nil {
		return *cur, ErrNotReady
	}
	pages := cur.dataset.pageCount
	if index < 0 || (pages > 0 && index >= pages) || (pages == 0 && index != 0) {
		return *cur, ErrPageOutOfRange
	}
	next := *cur
	next.viewport = viewportAt(cur.dataset, index)
	c.current.Store(&next)
	return next, nil
}
