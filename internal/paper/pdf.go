// Package paper renders a generated research paper as a single-page PDF.
package paper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/airesearcher/frontend/internal/model"
)

const (
	pageWidth   = 612 // US letter, points
	pageHeight  = 792
	margin      = 72
	titleSize   = 18
	bodySize    = 10
	bodyLeading = 13
	wrapColumn  = 95
)

// maxBodyLines is how many wrapped body lines fit under the title
var maxBodyLines = (pageHeight - 2*margin - 2*titleSize) / bodyLeading

// RenderPDF lays out the title and as much of the content as fits on one
// page. Characters outside printable ASCII are replaced with '?'.
func RenderPDF(p *model.Paper) []byte {
	var content bytes.Buffer
	fmt.Fprintf(&content, "BT\n/F2 %d Tf\n%d %d Td\n(%s) Tj\nET\n",
		titleSize, margin, pageHeight-margin, escape(p.Title))

	lines := wrap(p.Content, wrapColumn)
	if len(lines) > maxBodyLines {
		lines = append(lines[:maxBodyLines-1], "[...]")
	}

	fmt.Fprintf(&content, "BT\n/F1 %d Tf\n%d TL\n%d %d Td\n",
		bodySize, bodyLeading, margin, pageHeight-margin-2*titleSize)
	for _, line := range lines {
		fmt.Fprintf(&content, "(%s) Tj T*\n", escape(line))
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Contents 4 0 R "+
			"/Resources << /Font << /F1 5 0 R /F2 6 0 R >> >> >>", pageWidth, pageHeight),
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Times-Roman >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Times-Bold >>",
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(objects)+1)
	out.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return out.Bytes()
}

// escape makes s safe inside a PDF literal string
func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\t':
			b.WriteString("    ")
		case r < 0x20 || r > 0x7e:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// wrap splits text into lines of at most width runes, breaking on spaces
func wrap(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := ""
		for _, word := range words {
			for len([]rune(word)) > width {
				if current != "" {
					lines = append(lines, current)
					current = ""
				}
				r := []rune(word)
				lines = append(lines, string(r[:width]))
				word = string(r[width:])
			}
			switch {
			case current == "":
				current = word
			case len([]rune(current))+1+len([]rune(word)) <= width:
				current += " " + word
			default:
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	return lines
}
