// Package questions builds follow-up questions when the AI question service
// is unavailable.
package questions

import (
	"fmt"
	"sort"

	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

// MaxQuestions caps the size of a follow-up form.
const MaxQuestions = 5

type Generator struct {
	templates map[string]Template
}

func NewGenerator(lib Library) *Generator {
	byField := make(map[string]Template, len(lib.Templates))
	for _, t := range lib.Templates {
		byField[t.Field] = t
	}
	return &Generator{templates: byField}
}

// Generate selects up to MaxQuestions unavailable fields in priority order and
// renders their templates for the persona. Fields without a template are
// dropped after selection rather than replaced. level is accepted for parity
// with the AI service request and does not change the output.
func (g *Generator) Generate(missing []models.MissingField, level models.RiskLevel, persona models.ReporterType) []models.FollowUpQuestion {
	var pending []models.MissingField
	for _, f := range missing {
		if !f.Available {
			pending = append(pending, f)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Priority.Rank() < pending[j].Priority.Rank()
	})
	if len(pending) > MaxQuestions {
		pending = pending[:MaxQuestions]
	}

	out := make([]models.FollowUpQuestion, 0, len(pending))
	for _, f := range pending {
		tmpl, ok := g.templates[f.Field]
		if !ok {
			continue
		}
		q := models.FollowUpQuestion{
			ID:                fmt.Sprintf("q-%d", len(out)+1),
			Field:             f.Field,
			Question:          tmpl.text(persona),
			Type:              tmpl.Type,
			Required:          tmpl.required(f.Priority),
			Hint:              tmpl.Hint,
			ClinicalRationale: tmpl.ClinicalRationale,
		}
		if len(tmpl.Options) > 0 {
			q.Options = append([]string(nil), tmpl.Options...)
		}
		out = append(out, q)
	}
	return out
}

// Covers reports whether the library has a template for field.
func (g *Generator) Covers(field string) bool {
	_, ok := g.templates[field]
	return ok
}
