package genre

import (
	"strings"

	"go.uber.org/zap"
)

// labelSeparator splits labels that carry several categories ("ラーメン|餃子").
const labelSeparator = "|"

// Classifier evaluates an ordered rule table, first match wins.
// A Classifier is immutable and safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a Classifier over rules, kept in the given order.
func NewClassifier(rules []Rule) *Classifier {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Classifier{rules: cp}
}

// NewDefaultClassifier creates a Classifier over the embedded rule table.
func NewDefaultClassifier() (*Classifier, error) {
	rules, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	return NewClassifier(rules), nil
}

// Rules returns a copy of the rule table in evaluation order.
func (c *Classifier) Rules() []Rule {
	cp := make([]Rule, len(c.rules))
	copy(cp, c.rules)
	return cp
}

// Match returns the first rule matching label. Only the first
// separator-delimited segment of label is considered. ok is false for empty
// labels and for labels no rule recognizes.
func (c *Classifier) Match(label string) (rule Rule, ok bool) {
	first, _, _ := strings.Cut(label, labelSeparator)
	folded := fold(first)
	if folded == "" {
		return Rule{}, false
	}
	for i := range c.rules {
		if c.rules[i].matches(folded) {
			return c.rules[i], true
		}
	}
	return Rule{}, false
}

// Classify maps label to a genre code. It never fails: empty labels and
// unrecognized labels both yield Other, and unrecognized labels are logged so
// the rule table can be extended.
func (c *Classifier) Classify(label string) Code {
	rule, ok := c.Match(label)
	if ok {
		return rule.Code
	}
	if strings.TrimSpace(label) != "" {
		zap.L().Warn("genre: unknown label", zap.String("label", label))
	}
	return Other
}

// Known reports whether some rule recognizes label.
func (c *Classifier) Known(label string) bool {
	_, ok := c.Match(label)
	return ok
}
