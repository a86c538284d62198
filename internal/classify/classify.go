// Package classify maps free text (creditor names, descriptions, raw payloads)
// onto the closed set of bill categories.
package classify

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cleared-dev/billbox/internal/model"
)

// Rule is one keyword group. A rule matches when any keyword is a
// case-insensitive substring of the input, or any word appears in the input
// as a whole word. Short English terms go in Words so that "rent" does not
// match "corrente".
type Rule struct {
	Category model.Category `yaml:"category"`
	Keywords []string       `yaml:"keywords"`
	Words    []string       `yaml:"words,omitempty"`
}

// Classifier holds an ordered list of rules. The first matching rule wins.
type Classifier struct {
	rules []Rule
}

// New creates a Classifier from rules, keeping their order. Keywords are
// trimmed and lowercased; empty keywords are dropped.
func New(rules []Rule) *Classifier {
	lowered := make([]Rule, 0, len(rules))
	for _, r := range rules {
		lowered = append(lowered, Rule{
			Category: r.Category,
			Keywords: normalize(r.Keywords),
			Words:    normalize(r.Words),
		})
	}
	return &Classifier{rules: lowered}
}

func normalize(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Default returns a Classifier with the built-in rules.
func Default() *Classifier {
	return New(DefaultRules())
}

// Classify returns the category of the first matching rule, or
// model.CategoryOther when nothing matches.
func (c *Classifier) Classify(text string) model.Category {
	lower := strings.ToLower(text)
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Category
			}
		}
		for _, w := range r.Words {
			if containsWord(lower, w) {
				return r.Category
			}
		}
	}
	return model.CategoryOther
}

// containsWord reports whether w occurs in s with no letter or digit
// directly before or after it.
func containsWord(s, w string) bool {
	for start := 0; start < len(s); {
		i := strings.Index(s[start:], w)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(w)
		if !wordRuneBefore(s, i) && !wordRuneAt(s, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		start = i + size
	}
	return false
}

func wordRuneBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func wordRuneAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Rules returns a copy of the classifier's rules in match order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// DefaultRules returns the built-in keyword groups in match order.
// Rent comes first: any text mentioning "affitto" is rent.
// Property tax precedes the generic tax group because "property tax" contains "tax".
func DefaultRules() []Rule {
	return []Rule{
		{Category: model.CategoryRent, Keywords: []string{"affitto", "locazione", "pigione"}, Words: []string{"rent"}},
		{Category: model.CategoryElectricity, Keywords: []string{"elettricità", "elettricita", "electricity", "energia", "enel", "luce"}},
		{Category: model.CategoryGas, Keywords: []string{"gas", "metano"}},
		{Category: model.CategoryWater, Keywords: []string{"acqua", "water", "acquedotto", "idrico"}},
		{Category: model.CategoryHeating, Keywords: []string{"riscaldamento", "heating", "teleriscaldamento"}},
		{Category: model.CategoryCondominium, Keywords: []string{"condominio", "condominiale"}, Words: []string{"condo"}},
		{Category: model.CategoryInternet, Keywords: []string{"internet", "wifi", "wi-fi", "fibra", "adsl"}},
		{Category: model.CategoryMaintenance, Keywords: []string{"manutenzione", "maintenance", "riparazione", "repair"}},
		{Category: model.CategoryInsurance, Keywords: []string{"assicurazione", "insurance", "polizza"}},
		{Category: model.CategoryPropertyTax, Keywords: []string{"property tax", "imposta municipale"}},
		{Category: model.CategoryTax, Keywords: []string{"tassa", "imposta", "tributo", "f24", "pagopa"}, Words: []string{"tax", "taxes"}},
		{Category: model.CategoryCleaning, Keywords: []string{"pulizie", "pulizia", "cleaning"}},
		{Category: model.CategoryRentIncome, Keywords: []string{"canone incassato", "incasso"}, Words: []string{"income"}},
		{Category: model.CategoryDeposit, Keywords: []string{"deposito", "cauzione", "deposit"}},
	}
}
