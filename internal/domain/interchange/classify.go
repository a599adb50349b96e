package interchange

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Field is a canonical column of a normalized row.
type Field string

const (
	FieldName      Field = "name"
	FieldBirthDate Field = "birthDate"
	FieldAge       Field = "age"
	FieldGender    Field = "gender"
	FieldPhone     Field = "phone"
	FieldEmail     Field = "email"
	FieldNarrative Field = "narrative"
	FieldVisitDate Field = "visitDate"
)

// rule maps a header to field when it contains any keyword and none of the
// exclusions.
type rule struct {
	field    Field
	keywords []string
	exclude  []string
}

func (r rule) match(header string) bool {
	for _, x := range r.exclude {
		if strings.Contains(header, x) {
			return false
		}
	}
	for _, k := range r.keywords {
		if strings.Contains(header, k) {
			return true
		}
	}
	return false
}

// defaultRules is evaluated in order and the first match wins. Keywords are
// written lower-case without accents.
var defaultRules = []rule{
	{field: FieldName, keywords: []string{"nombre", "name"}},
	{field: FieldBirthDate, keywords: []string{"nacimiento", "birth"}},
	{field: FieldAge, keywords: []string{"edad", "age"}},
	{field: FieldGender, keywords: []string{"sexo", "genero", "gender", "sex"}},
	{field: FieldPhone, keywords: []string{"telefono", "phone", "celular", "movil", "whatsapp"}},
	{field: FieldEmail, keywords: []string{"correo", "email", "mail"}},
	{field: FieldNarrative, keywords: []string{"transcrip", "nota", "hist", "resumen"}},
	{field: FieldVisitDate, keywords: []string{"fecha", "date", "ultima"}, exclude: []string{"nacimiento", "birth"}},
}

// Classifier maps raw headers to canonical fields. It holds no per-row state
// and is safe for concurrent use.
type Classifier struct {
	rules []rule
}

// NewClassifier returns the built-in rule table extended by d, which may be
// nil. Extra keywords join the rule for their field; rule order is kept.
func NewClassifier(d *Dialect) *Classifier {
	rules := make([]rule, len(defaultRules))
	for i, r := range defaultRules {
		rules[i] = rule{field: r.field, keywords: append([]string(nil), r.keywords...), exclude: r.exclude}
		if d != nil {
			for _, k := range d.Fields[r.field] {
				if k = FoldHeader(k); k != "" {
					rules[i].keywords = append(rules[i].keywords, k)
				}
			}
		}
	}
	return &Classifier{rules: rules}
}

// Classify returns the canonical field for header, or false when the
// header is not recognized.
func (c *Classifier) Classify(header string) (Field, bool) {
	h := FoldHeader(header)
	if h == "" {
		return "", false
	}
	for _, r := range c.rules {
		if r.match(h) {
			return r.field, true
		}
	}
	return "", false
}

var defaultClassifier = NewClassifier(nil)

// Classify uses the built-in rule table.
func Classify(header string) (Field, bool) {
	return defaultClassifier.Classify(header)
}

// FoldHeader lower-cases and trims s and strips combining accents, so
// "Última Consulta" becomes "ultima consulta".
func FoldHeader(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
