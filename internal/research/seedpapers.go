package research

import (
	"strconv"
	"strings"

	"github.com/airesearcher/frontend/internal/model"
)

// ParseSeedPapers reads one paper per non-blank line in the form
// "title | url | authors | year". Missing fields are left empty and an
// unreadable year is dropped, so the parser never fails.
func ParseSeedPapers(text string) []model.SeedPaper {
	papers := make([]model.SeedPaper, 0)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.Split(line, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		papers = append(papers, model.SeedPaper{
			Title:   field(parts, 0),
			URL:     field(parts, 1),
			Authors: field(parts, 2),
			Year:    parseYear(field(parts, 3)),
		})
	}
	return papers
}

func field(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

// parseYear takes the leading base-10 integer of s: "2023abc" is 2023,
// "abc" has no year.
func parseYear(s string) *int {
	end := 0
	if end < len(s) && (s[0] == '-' || s[0] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return nil
	}

	year, err := strconv.Atoi(s[:end])
	if err != nil {
		return nil
	}
	return &year
}
