// Package ingestor implements the Task Ingestor (spec §4.1): it turns a
// Markdown task list into a set of models.Task values plus a parse report.
//
// The line-by-line scanning approach here follows the same idiom the
// teacher's internal/parser/markdown.go uses for its own (differently
// shaped) task extraction: run small, single-purpose regexes per field
// rather than a full AST walk for task-line recognition itself, because a
// full AST walk turns out unreliable for ad hoc bullet-list documents in
// practice. Fenced-code-block detection is the one place an AST walk is
// the right tool (goldmark's parser, the same library the teacher depends
// on for its own Markdown frontmatter/body parsing): it finds exactly the
// byte ranges a CommonMark-compliant fence spans, so task-like text inside
// an example code block is never mistaken for a real task line.
package ingestor

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/harrison/wavegate/internal/models"
	"github.com/harrison/wavegate/internal/taxonomy"
)

var (
	taskLinePattern = regexp.MustCompile(`(?i)^-\s*\[([ xX])\]\s*([A-Za-z][A-Za-z0-9]*-\d+|T\d+)\s*:\s*(.*)$`)
	malformedTask   = regexp.MustCompile(`^-\s*\[`)
	continuation    = regexp.MustCompile(`^\s{2,}-\s*(.*)$`)
	constitutionTag = regexp.MustCompile(`(?i)^\*\*Constitution\*\*:\s*(.*)$`)
	afterPattern    = regexp.MustCompile(`(?i)\bafter\s+([A-Za-z][A-Za-z0-9]*-\d+|T\d+)\b`)
	dependsPattern  = regexp.MustCompile(`(?i)\bdepends\s+on\s+([A-Za-z][A-Za-z0-9]*-\d+|T\d+)\b`)
	backtickPath    = regexp.MustCompile("`([^`\\s]+)`")
	looksLikePath   = regexp.MustCompile(`[\w./-]+\.[A-Za-z0-9]{1,6}|[\w-]+/[\w./-]+`)
	anyBullet       = regexp.MustCompile(`^\s*[-*]\s`)
)

// Report summarizes a single ingestion call (spec §4.1: "a parse report
// with counts and any warnings").
type Report struct {
	TaskCount        int
	DuplicateIDs     []string
	MalformedLines   []string
	UnknownPredecessors []string
	UsedFallbackFileScan []string // task IDs where the unquoted fallback scan fired
}

// Ingest reads the task list from r and returns the ordered tasks plus a
// report of what it found.
func Ingest(r io.Reader) ([]models.Task, *Report, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading task list: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading task list: %w", err)
	}

	lines = blankFencedCodeLines(content, lines)

	report := &Report{}
	var tasks []models.Task
	seen := make(map[string]bool)
	anyListLine := false

	var current *pendingTask
	flush := func() {
		if current == nil {
			return
		}
		task := current.finalize(report)
		if seen[task.ID] {
			report.DuplicateIDs = append(report.DuplicateIDs, task.ID)
		} else {
			seen[task.ID] = true
			tasks = append(tasks, task)
		}
		current = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")

		if strings.TrimSpace(trimmed) == "" {
			flush()
			continue
		}

		if m := taskLinePattern.FindStringSubmatch(trimmed); m != nil {
			flush()
			anyListLine = true
			current = &pendingTask{
				id:          m[2],
				description: strings.TrimSpace(m[3]),
				done:        strings.EqualFold(m[1], "x"),
			}
			continue
		}

		if current != nil {
			if m := continuation.FindStringSubmatch(trimmed); m != nil {
				anyListLine = true
				current.continuationLines = append(current.continuationLines, m[1])
				continue
			}
		}

		if anyBullet.MatchString(trimmed) {
			anyListLine = true
		}
		if malformedTask.MatchString(strings.TrimSpace(trimmed)) && current == nil {
			report.MalformedLines = append(report.MalformedLines, trimmed)
		}
	}
	flush()

	if len(tasks) == 0 {
		if anyListLine {
			return nil, report, taxonomy.New(taxonomy.InvalidTaskListFormat,
				"no task-shaped lines found, but list-like lines are present").
				WithRemediation("task lines must look like: - [ ] T1: description (checkbox, id, colon)")
		}
		return tasks, report, nil
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if !seen[dep] {
				report.UnknownPredecessors = append(report.UnknownPredecessors, fmt.Sprintf("%s -> %s", t.ID, dep))
			}
		}
	}

	report.TaskCount = len(tasks)
	return tasks, report, nil
}

// pendingTask accumulates a task line and its continuation lines during a
// single ingestion pass, before field extraction produces a models.Task.
type pendingTask struct {
	id                string
	description       string
	done              bool
	continuationLines []string
}

func (p *pendingTask) finalize(report *Report) models.Task {
	blob := strings.Join(append([]string{p.description}, p.continuationLines...), "\n")

	t := models.Task{
		ID:          p.id,
		Description: p.description,
		AgentRole:   models.DefaultAgentRole,
		Done:        p.done,
		Files:       extractFiles(blob, p.id, report),
	}

	for _, m := range afterPattern.FindAllStringSubmatch(blob, -1) {
		t.DependsOn = appendUnique(t.DependsOn, m[1])
	}
	for _, m := range dependsPattern.FindAllStringSubmatch(blob, -1) {
		t.DependsOn = appendUnique(t.DependsOn, m[1])
	}

	for _, l := range p.continuationLines {
		if m := constitutionTag.FindStringSubmatch(strings.TrimSpace(l)); m != nil {
			for _, tag := range strings.Split(m[1], ",") {
				tag = strings.TrimSpace(tag)
				if tag != "" {
					t.RuleTags = append(t.RuleTags, tag)
				}
			}
		}
	}

	return t
}

func extractFiles(blob, taskID string, report *Report) []string {
	var files []string
	seen := make(map[string]bool)

	for _, m := range backtickPath.FindAllStringSubmatch(blob, -1) {
		candidate := m[1]
		if strings.Contains(candidate, "/") || hasCommonExtension(candidate) {
			norm := models.NormalizeFile(candidate)
			if !seen[norm] {
				seen[norm] = true
				files = append(files, norm)
			}
		}
	}

	if len(files) == 0 {
		for _, m := range looksLikePath.FindAllString(blob, -1) {
			norm := models.NormalizeFile(m)
			if !seen[norm] {
				seen[norm] = true
				files = append(files, norm)
			}
		}
		if len(files) > 0 {
			report.UsedFallbackFileScan = append(report.UsedFallbackFileScan, taskID)
		}
	}

	return files
}

var commonExtensions = []string{
	".py", ".go", ".js", ".ts", ".tsx", ".jsx", ".java", ".rb", ".rs",
	".c", ".cc", ".cpp", ".h", ".hpp", ".md", ".json", ".yaml", ".yml",
	".toml", ".sh", ".sql", ".css", ".html",
}

func hasCommonExtension(s string) bool {
	for _, ext := range commonExtensions {
		if strings.HasSuffix(s, ext) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// blankFencedCodeLines parses content with goldmark to find every fenced
// and indented code block's byte range, then blanks the corresponding
// entries of lines so task-like text inside an example code block is
// never mistaken for a real task line.
func blankFencedCodeLines(content []byte, lines []string) []string {
	fenced := fencedLineRanges(content)
	if len(fenced) == 0 {
		return lines
	}
	out := make([]string, len(lines))
	copy(out, lines)
	for _, rng := range fenced {
		for i := rng.start; i <= rng.end && i < len(out); i++ {
			out[i] = ""
		}
	}
	return out
}

type lineRange struct{ start, end int }

// fencedLineRanges walks content's goldmark AST and returns the 0-based
// line ranges covered by every code block node (fenced or indented).
func fencedLineRanges(content []byte) []lineRange {
	reader := text.NewReader(content)
	doc := goldmark.DefaultParser().Parse(reader)

	lineStarts := newlineOffsets(content)
	var ranges []lineRange
	addRange := func(segs *text.Segments) {
		if segs == nil || segs.Len() == 0 {
			return
		}
		first := segs.At(0)
		last := segs.At(segs.Len() - 1)
		ranges = append(ranges, lineRange{
			start: offsetToLine(lineStarts, first.Start),
			end:   offsetToLine(lineStarts, last.Stop),
		})
	}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch block := n.(type) {
		case *ast.FencedCodeBlock:
			addRange(block.Lines())
		case *ast.CodeBlock:
			addRange(block.Lines())
		}
		return ast.WalkContinue, nil
	})
	return ranges
}

// newlineOffsets returns the byte offset each line begins at, for mapping
// a goldmark text.Segment's byte offsets back to line indices.
func newlineOffsets(content []byte) []int {
	offsets := []int{0}
	for i, b := range content {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

func offsetToLine(lineStarts []int, offset int) int {
	lo, hi := 0, len(lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
