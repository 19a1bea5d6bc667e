package genre

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rule pairs a keyword set with the code it assigns.
type Rule struct {
	Name     string   `yaml:"name"`
	Code     Code     `yaml:"code"`
	Keywords []string `yaml:"keywords"`

	folded []string
}

// matches reports whether the folded label contains any of the rule's keywords.
func (r *Rule) matches(label string) bool {
	for _, kw := range r.folded {
		if strings.Contains(label, kw) {
			return true
		}
	}
	return false
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultRules returns the embedded rule table.
func DefaultRules() ([]Rule, error) {
	return ParseRules(defaultRulesYAML)
}

// LoadRules reads a rule table from a YAML file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "genre: read rules %s", path)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule table. The returned slice keeps
// file order, which is the evaluation order.
func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "genre: parse rules")
	}
	if len(f.Rules) == 0 {
		return nil, eris.New("genre: rule table is empty")
	}

	seen := make(map[string]bool, len(f.Rules))
	for i := range f.Rules {
		r := &f.Rules[i]
		if r.Name == "" {
			return nil, eris.Errorf("genre: rule %d has no name", i)
		}
		if seen[r.Name] {
			return nil, eris.Errorf("genre: duplicate rule name %q", r.Name)
		}
		seen[r.Name] = true
		if !r.Code.Valid() {
			return nil, eris.Errorf("genre: rule %q has invalid code %d", r.Name, int(r.Code))
		}
		if len(r.Keywords) == 0 {
			return nil, eris.Errorf("genre: rule %q has no keywords", r.Name)
		}
		r.folded = make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			folded := fold(kw)
			if folded == "" {
				return nil, eris.Errorf("genre: rule %q has an empty keyword", r.Name)
			}
			r.folded = append(r.folded, folded)
		}
	}
	return f.Rules, nil
}

// fold brings labels and keywords to one comparable form: NFKC turns
// full-width Latin and digits into ASCII and half-width kana into full-width,
// then ASCII case is dropped.
func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}
