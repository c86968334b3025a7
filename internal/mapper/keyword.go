package mapper

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/spboyer/churnkit/internal/schema"
)

// wholeWordScore is the minimum score of a keyword that matches a whole word
// (or run of words) of the column name.
const wholeWordScore = 0.8

// maxKeywordConfidence caps keyword confidence below manual certainty.
const maxKeywordConfidence = 0.95

// Normalize turns a column name into lower-case space separated words.
// "MonthlyCharges", "monthly_charges" and "Monthly-Charges" all normalize to
// "monthly charges".
func Normalize(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte(' ')
			}
		}
		switch r {
		case '_', '-':
			b.WriteByte(' ')
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func keywordScore(name, keyword string) (float64, bool) {
	if !strings.Contains(name, keyword) && !strings.Contains(keyword, name) {
		return 0, false
	}
	if name == keyword {
		return 1.0, true
	}
	score := float64(len(keyword)) / float64(max(len(keyword), len(name)))
	if strings.Contains(" "+name+" ", " "+keyword+" ") {
		score = max(score, wholeWordScore)
	}
	return score, true
}

// matchKeyword scans the catalog in order and returns the best scoring role.
// Ties keep the earliest role and keyword.
func matchKeyword(column string) (ColumnMapping, bool) {
	name := Normalize(column)
	if name == "" {
		return ColumnMapping{}, false
	}

	var (
		best      ColumnMapping
		bestScore float64
	)
	for _, rs := range schema.Catalog {
		for _, kw := range rs.Keywords {
			score, ok := keywordScore(name, Normalize(kw))
			if !ok || score <= bestScore {
				continue
			}
			bestScore = score
			best = ColumnMapping{
				SourceColumn: column,
				Role:         rs.Role,
				Confidence:   min(score, maxKeywordConfidence),
				Method:       MethodKeyword,
				Notes:        fmt.Sprintf("Matched keyword: %s", kw),
			}
		}
	}
	return best, bestScore > 0
}
