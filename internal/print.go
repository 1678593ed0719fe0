package internal

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	tt "github.com/gnolang/octagon/internal/types"
)

const (
	tabWidth = 8
)

var (
	errorStyle   = color.New(color.FgRed, color.Bold)
	ruleStyle    = color.New(color.FgYellow, color.Bold)
	fileStyle    = color.New(color.FgCyan, color.Bold)
	lineStyle    = color.New(color.FgBlue, color.Bold)
	messageStyle = color.New(color.FgRed, color.Bold)
	funcStyle    = color.New(color.FgGreen, color.Bold)
	boundStyle   = color.New(color.FgMagenta)
)

// FormatReport renders the function summaries followed by the issues of
// report. source may be nil, in which case issues are printed without the
// offending line.
func FormatReport(report *tt.Report, source *SourceCode) string {
	var builder strings.Builder
	builder.WriteString(fileStyle.Sprint(report.File))
	builder.WriteString(fmt.Sprintf(" (entry %s, %d iterations, %d states)\n", report.Entry, report.Iterations, report.States))
	for _, fn := range report.Functions {
		builder.WriteString(formatFunction(fn))
	}
	builder.WriteString(FormatIssuesWithArrows(report.Issues, source))
	return builder.String()
}

func formatFunction(fn tt.FunctionResult) string {
	var result strings.Builder
	result.WriteString(funcStyle.Sprintf("func %s", fn.Name))
	if !fn.Reached {
		result.WriteString(" (exit unreachable)\n")
	} else {
		result.WriteString("\n")
		result.WriteString(formatBounds("  exit", fn.Exit))
	}
	for _, loop := range fn.Loops {
		result.WriteString(formatBounds(fmt.Sprintf("  loop at line %d", loop.Line), loop.Bounds))
		for _, c := range loop.Constraints {
			result.WriteString("    " + boundStyle.Sprint(c) + "\n")
		}
	}
	return result.String()
}

// formatBounds prints one variable per line with the names padded to a
// common display width.
func formatBounds(title string, bounds []tt.VarBound) string {
	var result strings.Builder
	result.WriteString(lineStyle.Sprint(title) + "\n")
	width := 0
	for _, b := range bounds {
		width = max(width, runewidth.StringWidth(b.Name))
	}
	for _, b := range bounds {
		result.WriteString("    " + runewidth.FillRight(b.Name, width) + " ∈ ")
		result.WriteString(boundStyle.Sprintf("[%s, %s]", b.Lower, b.Upper) + "\n")
	}
	return result.String()
}

func FormatIssuesWithArrows(issues []tt.Issue, sourceCode *SourceCode) string {
	var builder strings.Builder
	for _, issue := range issues {
		builder.WriteString(formatIssueHeader(issue))
		builder.WriteString(formatGeneralIssue(issue, sourceCode))
	}
	return builder.String()
}

func formatIssueHeader(issue tt.Issue) string {
	location := issue.Filename
	if issue.Start.Line > 0 {
		location = fmt.Sprintf("%s:%d:%d", issue.Filename, issue.Start.Line, issue.Start.Column)
	}
	return errorStyle.Sprint("error: ") + ruleStyle.Sprint(issue.Rule) + "\n" +
		lineStyle.Sprint(" --> ") + fileStyle.Sprint(location) + "\n"
}

func formatGeneralIssue(issue tt.Issue, sourceCode *SourceCode) string {
	var result strings.Builder

	if sourceCode == nil || issue.Start.Line < 1 || issue.Start.Line > len(sourceCode.Lines) {
		result.WriteString(messageStyle.Sprintf("  %s\n\n", issue.Message))
		return result.String()
	}

	lineNumberStr := fmt.Sprintf("%d", issue.Start.Line)
	padding := strings.Repeat(" ", len(lineNumberStr)-1)
	result.WriteString(lineStyle.Sprintf("  %s|\n", padding))

	line := expandTabs(sourceCode.Lines[issue.Start.Line-1])
	result.WriteString(lineStyle.Sprintf("%d | ", issue.Start.Line))
	result.WriteString(line + "\n")

	visualColumn := calculateVisualColumn(sourceCode.Lines[issue.Start.Line-1], issue.Start.Column)
	result.WriteString(lineStyle.Sprintf("  %s| ", padding))
	result.WriteString(strings.Repeat(" ", visualColumn))
	result.WriteString(messageStyle.Sprintf("^ %s\n\n", issue.Message))

	return result.String()
}

func expandTabs(line string) string {
	var expanded strings.Builder
	column := 0
	for _, ch := range line {
		if ch == '\t' {
			spaceCount := tabWidth - (column % tabWidth)
			expanded.WriteString(strings.Repeat(" ", spaceCount))
			column += spaceCount
		} else {
			expanded.WriteRune(ch)
			column += runewidth.RuneWidth(ch)
		}
	}
	return expanded.String()
}

// calculateVisualColumn converts the byte column of a position into the
// display column of the expanded line.
func calculateVisualColumn(line string, column int) int {
	visualColumn := 0
	for i, ch := range line {
		if i+1 >= column {
			break
		}
		if ch == '\t' {
			visualColumn += tabWidth - (visualColumn % tabWidth)
		} else {
			visualColumn += runewidth.RuneWidth(ch)
		}
	}
	return visualColumn
}
