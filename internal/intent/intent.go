// Package intent tags a user utterance with a coarse intent label using
// ordered whole-word keyword rules.
package intent

import (
	"regexp"
	"strings"
)

// Label is the coarse intent assigned to a user message.
type Label string

const (
	EmotionalInquiry Label = "emotional_inquiry"
	HelpRequest      Label = "help_request"
	TechniqueInquiry Label = "technique_inquiry"
	UrgentSituation  Label = "urgent_situation"
	Unknown          Label = "unknown"
)

// Rule maps a label to the words that trigger it.
type Rule struct {
	Label    Label
	Keywords []string
	pattern  *regexp.Regexp
}

// Matches reports whether any keyword of the rule occurs as a whole word in
// already lower-cased text.
func (r Rule) Matches(lowered string) bool {
	return r.pattern.MatchString(lowered)
}

// Rules is evaluated top to bottom; the first match wins.
var Rules = []Rule{
	newRule(EmotionalInquiry,
		"ansiedad", "ansioso", "ansiosa", "depresión", "deprimido", "deprimida",
		"estrés", "estresado", "estresada", "angustia", "angustiado", "angustiada",
		"tristeza", "triste", "miedo", "soledad"),
	newRule(HelpRequest,
		"ayuda", "ayudame", "ayúdame", "consejo", "apoyo", "orientación", "escuchar", "escúchame"),
	newRule(TechniqueInquiry,
		"técnica", "técnicas", "herramienta", "herramientas", "ejercicio", "ejercicios",
		"estrategia", "estrategias", "psicoterapia", "mindfulness", "respiración", "meditación"),
	newRule(UrgentSituation,
		"urgente", "crisis", "emergencia", "suicidio", "suicidarme"),
}

// Go's \b only understands ASCII word characters, so accented keywords such as
// "estrés" need explicit Unicode-aware boundaries.
const (
	leftBoundary  = `(?:^|[^\p{L}\p{N}_])`
	rightBoundary = `(?:$|[^\p{L}\p{N}_])`
)

func newRule(label Label, keywords ...string) Rule {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return Rule{
		Label:    label,
		Keywords: keywords,
		pattern:  regexp.MustCompile(leftBoundary + `(?:` + strings.Join(quoted, "|") + `)` + rightBoundary),
	}
}

// Classify returns the label of the first matching rule, or Unknown.
func Classify(text string) Label {
	lowered := strings.ToLower(text)
	for _, r := range Rules {
		if r.Matches(lowered) {
			return r.Label
		}
	}
	return Unknown
}
