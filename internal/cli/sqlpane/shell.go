package sqlpane

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/sqlpane/sqlpane/internal/export"
)

const shellPrompt = "sqlpane> "

const shellHelp = `\n next page, \p previous page, \first, \last, \page N
\export FILE [csv|parquet], \databases, \tables, \q quit
anything else runs as SQL`

// prompter is the part of liner.State the console uses.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

func newLinerPrompter() *liner.State {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(true)
	return line
}

func runShell(ctx context.Context, session *Session, input prompter, out io.Writer) error {
	_, _ = fmt.Fprintln(out, `sqlpane console, \? for help`)
	for {
		line, err := input.Prompt(shellPrompt)
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		input.AppendHistory(line)

		quit, err := handleShellLine(ctx, session, line, out)
		if err != nil {
			_, _ = fmt.Fprintf(out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

func handleShellLine(ctx context.Context, session *Session, line string, out io.Writer) (bool, error) {
	if !strings.HasPrefix(line, `\`) {
		if _, err := session.Execute(ctx, line); err != nil {
			return false, err
		}
		return false, session.PrintCurrent()
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case `\q`, `\quit`:
		return true, nil
	case `\?`, `\help`:
		_, err := fmt.Fprintln(out, shellHelp)
		return false, err
	case `\n`:
		_, err := session.Step(1)
		return false, printUnlessErr(session, err)
	case `\p`:
		_, err := session.Step(-1)
		return false, printUnlessErr(session, err)
	case `\first`:
		_, err := session.Page(0)
		return false, printUnlessErr(session, err)
	case `\last`:
		_, err := session.Last()
		return false, printUnlessErr(session, err)
	case `\page`:
		if len(fields) != 2 {
			return false, fmt.Errorf(`usage: \page N`)
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return false, fmt.Errorf("invalid page %q", fields[1])
		}
		_, err = session.Page(n - 1)
		return false, printUnlessErr(session, err)
	case `\export`:
		if len(fields) < 2 || len(fields) > 3 {
			return false, fmt.Errorf(`usage: \export FILE [csv|parquet]`)
		}
		raw := ""
		if len(fields) == 3 {
			raw = fields[2]
		}
		format, err := export.ParseFormat(raw)
		if err != nil {
			return false, err
		}
		target, err := session.Export(fields[1], format)
		if err != nil {
			return false, err
		}
		_, err = fmt.Fprintf(out, "exported %d rows to %s\n", session.Current().RowCount(), target)
		return false, err
	case `\databases`:
		names, err := session.backend.ListDatabases(ctx)
		if err != nil {
			return false, err
		}
		return false, printNames(out, names)
	case `\tables`:
		names, err := session.backend.ListTables(ctx)
		if err != nil {
			return false, err
		}
		return false, printNames(out, names)
	default:
		return false, fmt.Errorf(`unknown command %s, \? for help`, fields[0])
	}
}

func printUnlessErr(session *Session, err error) error {
	if err != nil {
		return err
	}
	return session.PrintCurrent()
}

func printNames(out io.Writer, names []string) error {
	for _, name := range names {
		if _, err := fmt.Fprintln(out, name); err != nil {
			return err
		}
	}
	return nil
}
