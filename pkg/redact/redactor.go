// Package redact masks reporter contact identifiers in narratives before they
// leave the service.
package redact

import (
	"fmt"
	"regexp"
	"sort"
)

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

type Redactor struct {
	rules []compiledRule
}

// Finding is one masked span of the input text.
type Finding struct {
	Type  string `json:"type"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Result carries the masked text and what was found in the original.
type Result struct {
	Text     string    `json:"text"`
	Findings []Finding `json:"findings,omitempty"`
}

func (r Result) Types() []string {
	seen := make(map[string]struct{}, len(r.Findings))
	var out []string
	for _, f := range r.Findings {
		if _, ok := seen[f.Type]; ok {
			continue
		}
		seen[f.Type] = struct{}{}
		out = append(out, f.Type)
	}
	sort.Strings(out)
	return out
}

func New(cfg RulesConfig) (*Redactor, error) {
	var compiled []compiledRule
	for _, rule := range cfg.Rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redaction rule %s: %w", rule.Name, err)
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return &Redactor{rules: compiled}, nil
}

// Redact applies every enabled rule in order. Findings refer to offsets in
// the text as each rule saw it.
func (r *Redactor) Redact(text string) Result {
	if r == nil {
		return Result{Text: text}
	}

	masked := text
	var findings []Finding
	for _, rule := range r.rules {
		for _, m := range rule.re.FindAllStringIndex(masked, -1) {
			findings = append(findings, Finding{Type: rule.rule.Type, Start: m[0], End: m[1]})
		}
		masked = rule.re.ReplaceAllLiteralString(masked, rule.rule.Mask)
	}
	return Result{Text: masked, Findings: findings}
}
