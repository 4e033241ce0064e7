package suggest

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/dragon1672/gemini-pdf-form-maker/internal/layout"
)

// label matches one to six words, the first starting with a letter
const labelPattern = `[A-Za-z][A-Za-z0-9'#/-]*(?: [A-Za-z0-9'#/-]+){0,5}`

// Rule is a single text pattern that proposes a field
type Rule struct {
	Name     string
	Kind     layout.FieldKind
	Pattern  *regexp.Regexp
	Priority int // lower wins when matches overlap
	Reason   string
	Enabled  bool

	// Label returns the field label for a submatch; nil uses submatch 1
	Label func(match []string) string
}

func getDefaultRules() []Rule {
	return []Rule{
		{
			Name: "yes_no_alternatives",
			Kind: layout.KindRadio,
			Pattern: regexp.MustCompile(`(?i)(?:(` + labelPattern + `)\s*[:?]?[ \t]*)?` +
				`\b(yes|male|true)[ \t]*(?:/|\bor\b|\|)[ \t]*(no|female|false)\b`),
			Priority: 1,
			Reason:   "Mutually exclusive alternatives offered as a choice",
			Enabled:  true,
			Label: func(m []string) string {
				if strings.TrimSpace(m[1]) != "" {
					return m[1]
				}
				return m[2] + " " + m[3]
			},
		},
		{
			Name:     "checkbox_marker",
			Kind:     layout.KindCheckbox,
			Pattern:  regexp.MustCompile(`(?:\[[ \t]*\]|☐|□)[ \t]*(` + labelPattern + `)`),
			Priority: 2,
			Reason:   "Empty box marker next to a statement",
			Enabled:  true,
		},
		{
			Name:     "labelled_blank",
			Kind:     layout.KindText,
			Pattern:  regexp.MustCompile(`([A-Z][A-Za-z0-9'#/-]*(?: [A-Za-z0-9'#/-]+){0,3})[ \t]*(?::|_{3,})`),
			Priority: 3,
			Reason:   "Label followed by a colon or a blank line to write on",
			Enabled:  true,
		},
	}
}

// RuleSuggester proposes fields with keyword and pattern rules
type RuleSuggester struct {
	rules []Rule
}

// NewRuleSuggester creates a suggester with the default rule set
func NewRuleSuggester() *RuleSuggester {
	return &RuleSuggester{rules: getDefaultRules()}
}

// NewRuleSuggesterWithRules creates a suggester with a custom rule set
func NewRuleSuggesterWithRules(rules []Rule) *RuleSuggester {
	return &RuleSuggester{rules: rules}
}

// Rules returns the configured rules
func (s *RuleSuggester) Rules() []Rule {
	return s.rules
}

type match struct {
	start, end int
	priority   int
	suggestion Suggestion
}

// Suggest applies every enabled rule and returns suggestions in text order.
// Where matches overlap, the higher-priority rule keeps the span.
func (s *RuleSuggester) Suggest(ctx context.Context, text string) ([]Suggestion, error) {
	text = Truncate(text)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var matches []match
	for _, rule := range s.rules {
		if !rule.Enabled || rule.Pattern == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, loc := range rule.Pattern.FindAllStringSubmatchIndex(text, -1) {
			sub := submatches(text, loc)
			label := ""
			if rule.Label != nil {
				label = rule.Label(sub)
			} else if len(sub) > 1 {
				label = sub[1]
			}
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			matches = append(matches, match{
				start:    loc[0],
				end:      loc[1],
				priority: rule.Priority,
				suggestion: Suggestion{
					Name:   label,
					Kind:   rule.Kind,
					Reason: rule.Reason,
				},
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].priority < matches[j].priority
	})
	var kept []match
	for _, m := range matches {
		if !overlapsAny(m, kept) {
			kept = append(kept, m)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].start < kept[j].start
	})

	names := make(nameSet)
	out := make([]Suggestion, 0, len(kept))
	for _, m := range kept {
		sg := m.suggestion
		sg.Name = names.unique(CamelCase(sg.Name))
		out = append(out, sg)
	}
	return out, nil
}

func overlapsAny(m match, kept []match) bool {
	for _, k := range kept {
		if m.start < k.end && k.start < m.end {
			return true
		}
	}
	return false
}

func submatches(text string, loc []int) []string {
	sub := make([]string, len(loc)/2)
	for i := range sub {
		if loc[2*i] >= 0 {
			sub[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return sub
}
