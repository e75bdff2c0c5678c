// Package parser splits an llms.txt markdown document into
// heading-scoped blocks with exact 1-based line ranges, and emits the
// hierarchical table of contents. It's designed to be simple and
// predictable - a single line scan, no full CommonMark AST.
package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/bad33ndj3/docdex/internal/domain"
	"github.com/bad33ndj3/docdex/internal/heading"
)

// Result is the output of one full parse.
type Result struct {
	// Blocks is the ordered list of heading blocks.
	Blocks []domain.HeadingBlock

	// Toc is the hierarchical table of contents.
	Toc []domain.TocEntry

	// TotalLines counts newline-terminated lines plus a trailing
	// partial line, over the exact input bytes.
	TotalLines int

	// Diagnostics accumulates non-fatal observations.
	Diagnostics []string
}

// Parser re-parses the full document on every update; it is not
// incremental.
type Parser struct{}

// New creates a parser.
func New() *Parser {
	return &Parser{}
}

// atxRe matches ATX headings like "## Usage". Closing hash sequences
// ("## Usage ##") are stripped from the captured text afterwards.
var atxRe = regexp.MustCompile(`^(#{1,6})[ \t]+(.*?)[ \t]*$`)

// setextRe matches a setext underline: all '=' (level 1) or all '-'
// (level 2), at least one char, optional trailing whitespace.
var setextRe = regexp.MustCompile(`^(=+|-+)[ \t]*$`)

// fenceRe matches the start of a fenced code block, ``` or ~~~ with up
// to three leading spaces.
var fenceRe = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})")

// openBlock tracks one heading whose region has not closed yet.
type openBlock struct {
	level     int
	startLine int
	display   string
	raw       string
	toc       *tocNode
	blockIdx  int
}

// tocNode is the mutable tree built during the scan; it is converted to
// value-typed domain.TocEntry at the end.
type tocNode struct {
	entry    domain.TocEntry
	endLine  int
	children []*tocNode
}

// Parse scans content and produces blocks, toc, and diagnostics.
// Cancellation is honored at block boundaries; a cancelled parse
// returns the context error and no partial result.
func (p *Parser) Parse(ctx context.Context, content string) (*Result, error) {
	res := &Result{}
	if content == "" {
		return res, nil
	}

	lines := strings.Split(content, "\n")
	total := len(lines)
	if lines[len(lines)-1] == "" {
		// A trailing newline does not start a new line.
		total--
	}
	res.TotalLines = total

	var (
		stack      []openBlock
		roots      []*tocNode
		anchors    = heading.NewAnchorSet()
		seenPaths  = map[string]int{}
		inFence    bool
		fenceMark  string
		fenceLine  int
		inComment  bool
		flatBlocks []domain.HeadingBlock
	)

	closeTo := func(level, lastLine int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			end := lastLine
			if end < top.startLine {
				end = top.startLine
			}
			top.toc.endLine = end
			flatBlocks[top.blockIdx].EndLine = end
			flatBlocks[top.blockIdx].Content = strings.Join(lines[top.startLine-1:end], "\n")
			top.toc.entry.Lines = domain.FormatLines(top.startLine, end)
		}
		return nil
	}

	openHeading := func(level, line int, raw string) error {
		if err := closeTo(level, line-1); err != nil {
			return err
		}

		if len(stack) > 0 {
			prev := stack[len(stack)-1].level
			if level > prev+1 {
				res.Diagnostics = append(res.Diagnostics,
					fmt.Sprintf("line %d: heading level jumps from %d to %d", line, prev, level))
			}
		}

		seg := heading.Segment(raw)
		display := seg.Display
		if display == "" {
			display = raw
		}

		displayPath := make([]string, 0, len(stack)+1)
		rawPath := make([]string, 0, len(stack)+1)
		for _, ob := range stack {
			displayPath = append(displayPath, ob.display)
			rawPath = append(rawPath, ob.raw)
		}
		displayPath = append(displayPath, display)
		rawPath = append(rawPath, raw)

		pv := heading.Path(rawPath)
		base := heading.AnchorForPath(pv.NormalizedSegments)
		if n := seenPaths[base]; n > 0 {
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("line %d: duplicate heading path %q", line, strings.Join(displayPath, " > ")))
		}
		seenPaths[base]++
		anchor := anchors.Claim(base)

		var parentAnchor string
		if len(stack) > 0 {
			parentAnchor = stack[len(stack)-1].toc.entry.Anchor
		}

		node := &tocNode{entry: domain.TocEntry{
			HeadingPath:    pv.DisplaySegments,
			RawPath:        rawPath,
			NormalizedPath: pv.NormalizedSegments,
			Anchor:         anchor,
		}}
		if len(stack) > 0 {
			parent := stack[len(stack)-1].toc
			parent.children = append(parent.children, node)
		} else {
			roots = append(roots, node)
		}

		flatBlocks = append(flatBlocks, domain.HeadingBlock{
			Path:         pv.DisplaySegments,
			StartLine:    line,
			Level:        level,
			Anchor:       anchor,
			ParentAnchor: parentAnchor,
		})

		stack = append(stack, openBlock{
			level:     level,
			startLine: line,
			display:   display,
			raw:       raw,
			toc:       node,
			blockIdx:  len(flatBlocks) - 1,
		})
		return nil
	}

	for i := 0; i < total; i++ {
		line := lines[i]
		ln := i + 1

		// HTML comments suppress heading recognition, including the
		// multi-line form.
		if inComment {
			if strings.Contains(line, "-->") {
				inComment = false
			}
			continue
		}

		if inFence {
			if m := fenceRe.FindStringSubmatch(line); m != nil && m[1][0] == fenceMark[0] && len(m[1]) >= len(fenceMark) {
				inFence = false
			}
			continue
		}

		if m := fenceRe.FindStringSubmatch(line); m != nil {
			inFence = true
			fenceMark = m[1]
			fenceLine = ln
			continue
		}

		if idx := strings.Index(line, "<!--"); idx >= 0 && !strings.Contains(line[idx:], "-->") {
			inComment = true
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "<!--") {
			// Single-line comment; nothing else on the line matters.
			continue
		}

		if m := atxRe.FindStringSubmatch(line); m != nil {
			text := strings.TrimRight(m[2], "#")
			text = strings.TrimRight(text, " \t")
			if err := openHeading(len(m[1]), ln, text); err != nil {
				return nil, err
			}
			continue
		}

		// Setext underline: promotes the previous line to a heading,
		// attributed to the text line, not the underline.
		if m := setextRe.FindStringSubmatch(line); m != nil && i > 0 {
			prev := lines[i-1]
			trimmed := strings.TrimSpace(prev)
			if trimmed != "" && !atxRe.MatchString(prev) && !setextRe.MatchString(prev) && fenceRe.FindString(prev) == "" {
				level := 1
				if m[1][0] == '-' {
					level = 2
				}
				if err := openHeading(level, ln-1, trimmed); err != nil {
					return nil, err
				}
				continue
			}
		}
	}

	if inFence {
		res.Diagnostics = append(res.Diagnostics,
			fmt.Sprintf("line %d: unterminated code fence", fenceLine))
	}
	if inComment {
		res.Diagnostics = append(res.Diagnostics, "unterminated HTML comment")
	}

	if err := closeTo(0, total); err != nil {
		return nil, err
	}

	res.Blocks = flatBlocks
	res.Toc = convertToc(roots)
	return res, nil
}

func convertToc(nodes []*tocNode) []domain.TocEntry {
	out := make([]domain.TocEntry, 0, len(nodes))
	for _, n := range nodes {
		e := n.entry
		e.Children = convertToc(n.children)
		out = append(out, e)
	}
	return out
}

// BlockForLine locates the smallest block whose range contains the
// given 1-based line. Used for block expansion. Returns false when the
// line falls in preamble attributed to no block.
func BlockForLine(blocks []domain.HeadingBlock, line int) (domain.HeadingBlock, bool) {
	best := -1
	for i, b := range blocks {
		if line < b.StartLine || line > b.EndLine {
			continue
		}
		if best < 0 || b.EndLine-b.StartLine < blocks[best].EndLine-blocks[best].StartLine {
			best = i
		}
	}
	if best < 0 {
		return domain.HeadingBlock{}, false
	}
	return blocks[best], true
}
