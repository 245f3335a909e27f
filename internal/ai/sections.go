package ai

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// SummarySectionNames are the labels every generated summary must carry.
var SummarySectionNames = []string{
	"Invention Overview",
	"Key Features & Components",
	"Claims",
	"Applications",
}

// SummarySections extracts section labels from a generated summary by
// walking its markdown headings and bold runs. Models sometimes emit
// "**Claims:**" instead of "## Claims", so both shapes count.
func SummarySections(summary string) []string {
	source := []byte(summary)
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var labels []string
	ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			labels = append(labels, cleanLabel(string(n.Text(source))))
		case *ast.Emphasis:
			if n.Level == 2 {
				labels = append(labels, cleanLabel(string(n.Text(source))))
			}
		}
		return ast.WalkContinue, nil
	})
	return labels
}

// HasAllSections reports whether the summary carries every canonical
// section label.
func HasAllSections(summary string) bool {
	labels := SummarySections(summary)
	for _, want := range SummarySectionNames {
		found := false
		for _, got := range labels {
			if strings.EqualFold(got, cleanLabel(want)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func cleanLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ":")
	// Strip a leading list index like "1." from numbered section labels.
	if i := strings.IndexByte(s, '.'); i > 0 && i <= 2 {
		digitsOnly := true
		for _, r := range s[:i] {
			if r < '0' || r > '9' {
				digitsOnly = false
				break
			}
		}
		if digitsOnly {
			s = strings.TrimSpace(s[i+1:])
		}
	}
	return s
}
