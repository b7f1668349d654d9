package report

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

const analyzePrefix = "ANALYZE "

// ToMarkdown converts report text into Markdown: every ANALYZE line becomes a second
// level heading, every group line a third level heading, and the statistic lines of a
// group a fenced code block.
func ToMarkdown(text []byte) []byte {
	var out bytes.Buffer
	inFence := false
	closeFence := func() {
		if inFence {
			out.WriteString("```\n\n")
			inFence = false
		}
	}

	sc := bufio.NewScanner(bytes.NewReader(text))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, analyzePrefix):
			closeFence()
			out.WriteString("## " + escape(line) + "\n\n")
		case !strings.HasPrefix(line, "\t"):
			closeFence()
			out.WriteString("### " + escape(line) + "\n\n")
		default:
			if !inFence {
				out.WriteString("```\n")
				inFence = true
			}
			out.WriteString(strings.TrimPrefix(line, "\t") + "\n")
		}
	}
	closeFence()
	return out.Bytes()
}

// RenderHTML renders report text as a complete HTML page titled title.
func RenderHTML(title string, text []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CompletePage,
	})
	return markdown.ToHTML(ToMarkdown(text), p, r)
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"#", `\#`,
)

func escape(s string) string {
	return mdEscaper.Replace(s)
}
