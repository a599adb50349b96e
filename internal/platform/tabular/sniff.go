package tabular

import "strings"

var candidates = []rune{',', ';', '\t', '|'}

// SniffDelimiter picks the delimiter for text by counting candidate
// characters outside quoted sections of the header line. Ties go to the
// earlier candidate; comma is the default.
func SniffDelimiter(text string) rune {
	header := firstLine(text)
	counts := make(map[rune]int, len(candidates))
	inQuotes := false
	for _, r := range header {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		counts[r]++
	}

	best, bestCount := ',', 0
	for _, c := range candidates {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return strings.TrimSuffix(line, "\r")
		}
	}
	return ""
}
