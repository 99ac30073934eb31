package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"fieldsync/internal/preflight"
	"fieldsync/internal/syncer"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	return paint(base, kind, colorize)
}

// renderProgressLine formats one sync progress message.
func renderProgressLine(msg syncer.Message, colorize bool) string {
	base := fmt.Sprintf("%s %s", msg.Time.Local().Format("15:04:05"), msg.String())
	return paint(base, levelKind(msg.Level), colorize)
}

// renderCheckLines formats preflight results, summary first.
func renderCheckLines(results []preflight.Result, colorize bool) []string {
	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
		}
	}
	lines := make([]string, 0, len(results)+1)
	if failed == 0 {
		lines = append(lines, renderStatusLine("Summary", statusOK, fmt.Sprintf("%d checks passed", len(results)), colorize))
	} else {
		lines = append(lines, renderStatusLine("Summary", statusError, fmt.Sprintf("%d of %d checks failed", failed, len(results)), colorize))
	}
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

func levelKind(level syncer.Level) statusKind {
	switch level {
	case syncer.LevelError:
		return statusError
	case syncer.LevelWarn:
		return statusWarn
	default:
		return statusInfo
	}
}

func paint(line string, kind statusKind, colorize bool) string {
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + line + ansiReset
		}
	}
	return line
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
