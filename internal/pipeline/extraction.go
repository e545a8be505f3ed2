package pipeline

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Modifier names reported by extraction.
const (
	ModifierExertional  = "exertional"
	ModifierSuddenOnset = "sudden-onset"
)

var (
	exertionalRe = regexp.MustCompile(`\b(?:on exertion|exertion|exerting myself|exercis(?:e|ing)|climb(?:ing)?(?: up)?(?: the)? stairs|(?:going|walking) up(?: the)? (?:stairs|hill)|when i walk|walking|running|physical activity)\b`)
	suddenRe     = regexp.MustCompile(`\b(?:sudden(?:ly)?|all of a sudden|out of nowhere|came on (?:all at once|fast|quickly)|thunderclap)\b`)
	durationRe   = regexp.MustCompile(`\b(?:for|over) (?:the )?(?:(?:last|past) )?((?:\d+|a|an|one|two|three|four|five|six|seven|eight|nine|ten|a few|few|several|a couple of|couple of) (?:minute|hour|day|week|month|year)s?)\b|\bsince (yesterday|last night|this morning|this afternoon|earlier today|last week)\b`)
)

type match struct {
	start, end int
	lex        lexeme
}

// Extract recognises clinical entities in utterance. It is pure: the same text
// always yields the same Extraction.
func Extract(utterance string) *Extraction {
	text := normalizeText(utterance)
	out := &Extraction{Entities: []Entity{}, Modifiers: []string{}}

	seen := make(map[string]bool)
	for _, m := range findMatches(text) {
		if seen[m.lex.name] {
			continue
		}
		prefix := clauseWords(text[:m.start])
		if negated(prefix) {
			continue
		}
		seen[m.lex.name] = true
		ent := Entity{Name: m.lex.name, Kind: m.lex.kind}
		if m.lex.kind != KindMedication {
			if len(prefix) > 0 {
				ent.Severity = severityWords[prefix[len(prefix)-1]]
			}
			ent.Duration = durationNear(text, m.start)
		}
		out.Entities = append(out.Entities, ent)
	}

	if affirmed(text, exertionalRe) {
		out.Modifiers = append(out.Modifiers, ModifierExertional)
	}
	if affirmed(text, suddenRe) {
		out.Modifiers = append(out.Modifiers, ModifierSuddenOnset)
	}
	return out
}

// affirmed reports whether re matches somewhere in text outside a negated clause.
func affirmed(text string, re *regexp.Regexp) bool {
	for _, loc := range re.FindAllStringIndex(text, -1) {
		if !negated(clauseWords(text[:loc[0]])) {
			return true
		}
	}
	return false
}

func normalizeText(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer("’", "'", "‘", "'").Replace(s)
}

// findMatches returns non-overlapping lexicon hits in encounter order.
func findMatches(text string) []match {
	taken := make([]bool, len(text))
	var out []match
	for _, lx := range matchOrder {
		from := 0
		for from < len(text) {
			i := strings.Index(text[from:], lx.phrase)
			if i < 0 {
				break
			}
			start := from + i
			from = start + 1
			end, ok := wordEnd(text, start+len(lx.phrase))
			if !ok || (start > 0 && isWordByte(text[start-1])) {
				continue
			}
			if overlaps(taken, start, end) {
				continue
			}
			for k := start; k < end; k++ {
				taken[k] = true
			}
			out = append(out, match{start: start, end: end, lex: lx})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

// wordEnd accepts a phrase ending at a word boundary, allowing a plural "s".
func wordEnd(text string, end int) (int, bool) {
	if end >= len(text) || !isWordByte(text[end]) {
		return end, true
	}
	if text[end] == 's' && (end+1 >= len(text) || !isWordByte(text[end+1])) {
		return end + 1, true
	}
	return end, false
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func overlaps(taken []bool, start, end int) bool {
	for k := start; k < end; k++ {
		if taken[k] {
			return true
		}
	}
	return false
}

// clauseWords returns the words of the clause that ends at the end of prefix.
func clauseWords(prefix string) []string {
	if i := strings.LastIndexAny(prefix, ".,;:!?\n"); i >= 0 {
		prefix = prefix[i+1:]
	}
	words := strings.FieldsFunc(prefix, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '-')
	})
	for i := len(words) - 1; i >= 0; i-- {
		if clauseBreakWords[words[i]] {
			return words[i+1:]
		}
	}
	return words
}

func negated(prefix []string) bool {
	from := len(prefix) - negationWindow
	if from < 0 {
		from = 0
	}
	for _, w := range prefix[from:] {
		if negationCues[w] {
			return true
		}
	}
	return false
}

// durationNear finds a duration phrase in the sentence containing pos.
func durationNear(text string, pos int) string {
	start := strings.LastIndexAny(text[:pos], ".!?\n") + 1
	end := len(text)
	if i := strings.IndexAny(text[pos:], ".!?\n"); i >= 0 {
		end = pos + i
	}
	m := durationRe.FindStringSubmatch(text[start:end])
	switch {
	case m == nil:
		return ""
	case m[1] != "":
		return m[1]
	default:
		return "since " + m[2]
	}
}

// SplitSentences splits an utterance into trimmed, non-empty statements.
func SplitSentences(utterance string) []string {
	parts := strings.FieldsFunc(utterance, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
