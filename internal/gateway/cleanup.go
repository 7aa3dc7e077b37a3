package gateway

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Pass is one named transformation of the model output.
type Pass struct {
	Name  string
	Apply func(string) string
}

// Pipeline runs passes in order. Passes do not commute.
type Pipeline []Pass

// Run applies every pass to text.
func (p Pipeline) Run(text string) string {
	for _, pass := range p {
		text = pass.Apply(text)
	}
	return text
}

// DefaultPipeline is applied to every successful completion. Code fences go
// first so that code samples never feed the heading and bullet passes.
var DefaultPipeline = Pipeline{
	{Name: "strip_code_fences", Apply: StripCodeFences},
	{Name: "headings_to_bold", Apply: HeadingsToBold},
	{Name: "normalize_bullets", Apply: NormalizeBullets},
	{Name: "strip_links", Apply: StripLinks},
	{Name: "strip_stray_emphasis", Apply: StripStrayEmphasis},
	{Name: "collapse_blank_lines", Apply: CollapseBlankLines},
	{Name: "trim", Apply: strings.TrimSpace},
}

var (
	codeFenceRe  = regexp.MustCompile("(?s)```.*?(?:```|$)")
	headingRe    = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+(.+?)(?:[ \t]+#+)?[ \t]*$`)
	bulletRe     = regexp.MustCompile(`(?m)^([ \t]*)(?:[•●▪◦‣∙·➤→*+]|-)[ \t]+`)
	linkRe       = regexp.MustCompile(`!?\[([^\]\n]*)\]\([^)\n]*\)`)
	ruleRe       = regexp.MustCompile(`^[ \t]*(?:(?:\*[ \t]*){3,}|(?:-[ \t]*){3,}|(?:_[ \t]*){3,})\r?$`)
	markerRunRe  = regexp.MustCompile(`\*+|_+`)
	blankLinesRe = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)
)

// StripCodeFences removes fenced code blocks entirely, including an unclosed
// trailing fence.
func StripCodeFences(s string) string {
	return codeFenceRe.ReplaceAllString(s, "")
}

// HeadingsToBold turns ATX headings into bold lines.
func HeadingsToBold(s string) string {
	return headingRe.ReplaceAllString(s, "**$1**")
}

// NormalizeBullets rewrites the bullet glyphs models like to use as "- ",
// keeping the indentation. Horizontal rules such as "* * *" are left alone.
func NormalizeBullets(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if ruleRe.MatchString(line) {
			continue
		}
		lines[i] = bulletRe.ReplaceAllString(line, "$1- ")
	}
	return strings.Join(lines, "\n")
}

// StripLinks keeps the text of markdown links and images and drops the target.
func StripLinks(s string) string {
	return linkRe.ReplaceAllString(s, "$1")
}

// StripStrayEmphasis removes emphasis markers glued between two letters,
// e.g. "pala**bra" becomes "palabra". When such a run closes an earlier
// opener on the same line ("**hola**mundo"), the opener goes too. Markers
// next to digits are arithmetic or numbers, and a single '_' is snake_case,
// so both are kept. Emphasis that opens or closes at a word edge is left
// alone.
func StripStrayEmphasis(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = stripStrayLine(line)
	}
	return strings.Join(lines, "\n")
}

func stripStrayLine(line string) string {
	runs := markerRunRe.FindAllStringIndex(line, -1)
	if runs == nil {
		return line
	}
	drop := make([]bool, len(runs))
	open := map[string]int{}
	for i, r := range runs {
		marker := line[r[0]:r[1]]
		before, _ := utf8.DecodeLastRuneInString(line[:r[0]])
		after, _ := utf8.DecodeRuneInString(line[r[1]:])
		if r[0] == 0 {
			before = ' '
		}
		if r[1] == len(line) {
			after = ' '
		}

		if isStrayRun(line, r, before, after) {
			drop[i] = true
			if j, ok := open[marker]; ok {
				drop[j] = true
				delete(open, marker)
			}
			continue
		}
		if _, ok := open[marker]; ok && !unicode.IsSpace(before) {
			delete(open, marker)
		} else if !unicode.IsSpace(after) {
			open[marker] = i
		}
	}

	var sb strings.Builder
	last := 0
	for i, r := range runs {
		if drop[i] {
			sb.WriteString(line[last:r[0]])
			last = r[1]
		}
	}
	sb.WriteString(line[last:])
	return sb.String()
}

func isStrayRun(line string, r []int, before, after rune) bool {
	if !unicode.IsLetter(before) || !unicode.IsLetter(after) {
		return false
	}
	if line[r[0]] == '*' {
		return true
	}
	return r[1]-r[0] > 1 && !identifierLike(line, r)
}

// identifierLike reports whether the token around the run carries digits or
// dots, as in file names and versioned identifiers.
func identifierLike(line string, r []int) bool {
	start := strings.LastIndexAny(line[:r[0]], " \t") + 1
	end := len(line)
	if k := strings.IndexAny(line[r[1]:], " \t"); k >= 0 {
		end = r[1] + k
	}
	return strings.ContainsFunc(line[start:end], func(c rune) bool {
		return c == '.' || unicode.IsDigit(c)
	})
}

// CollapseBlankLines reduces any run of blank lines to a single one.
func CollapseBlankLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return blankLinesRe.ReplaceAllString(s, "\n\n")
}
