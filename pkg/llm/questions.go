package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

const questionsPrompt = `You are an expert pharmacovigilance analyst generating targeted follow-up questions for ICSR (Individual Case Safety Report) cases.

Generate 3-5 clinically relevant questions that are SPECIFIC to the reported drug-event pair:
1. Prioritize questions that help establish causality (temporal relationship, dose-response, dechallenge/rechallenge)
2. Include event-specific clinical questions
3. Capture critical missing data elements per ICH E2B(R3)
4. Adjust language complexity to the reporter type

For each question specify question, field, type (date, select, multiselect, text, drug_search), options for select types, required, hint and clinicalRationale.`

var questionsTool = toolFunction{
	Name:        "generate_followup_questions",
	Description: "Generate context-aware clinical follow-up questions",
	Parameters: object(map[string]interface{}{
		"questions": array(object(map[string]interface{}{
			"id":                str(""),
			"question":          str(""),
			"field":             str(""),
			"type":              enum("date", "select", "multiselect", "text", "drug_search"),
			"options":           array(str("")),
			"required":          map[string]interface{}{"type": "boolean"},
			"hint":              str(""),
			"clinicalRationale": str(""),
		}, "id", "question", "field", "type", "required")),
		"reasoning": str("Brief explanation of why these questions were selected"),
	}, "questions", "reasoning"),
}

// QuestionRequest is the case context sent to the question service.
type QuestionRequest struct {
	DrugName      string
	AdverseEvent  string
	MeddraCode    string
	ReporterType  models.ReporterType
	MissingFields []string
	RiskLevel     models.RiskLevel
}

type QuestionSet struct {
	Questions []models.FollowUpQuestion `json:"questions"`
	Reasoning string                    `json:"reasoning"`
}

func personaLabel(p models.ReporterType) string {
	if p == models.ReporterHCP {
		return "Healthcare Professional"
	}
	return "Patient"
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// GenerateQuestions asks the service for event-specific follow-up questions.
// An empty question list is reported as a malformed response so callers fall
// back to the template generator.
func (c *Client) GenerateQuestions(ctx context.Context, req QuestionRequest) (QuestionSet, error) {
	var b strings.Builder
	b.WriteString("Generate targeted follow-up questions for this ICSR case:\n\n")
	fmt.Fprintf(&b, "DRUG: %s\n", orDefault(req.DrugName, "Unknown drug"))
	fmt.Fprintf(&b, "ADVERSE EVENT: %s", orDefault(req.AdverseEvent, "Unknown event"))
	if req.MeddraCode != "" {
		fmt.Fprintf(&b, " (MedDRA: %s)", req.MeddraCode)
	}
	fmt.Fprintf(&b, "\nREPORTER TYPE: %s\n", personaLabel(req.ReporterType))
	fmt.Fprintf(&b, "RISK LEVEL: %s\n", orDefault(req.RiskLevel.Label(), "Medium"))
	fmt.Fprintf(&b, "MISSING DATA FIELDS: %s\n", orDefault(strings.Join(req.MissingFields, ", "), "None specified"))

	var set QuestionSet
	if err := c.callTool(ctx, questionsPrompt, b.String(), questionsTool, &set); err != nil {
		return QuestionSet{}, fmt.Errorf("question generation failed: %w", err)
	}
	if len(set.Questions) == 0 {
		return QuestionSet{}, fmt.Errorf("question generation failed: %w: no questions", ErrMalformedResponse)
	}
	for i := range set.Questions {
		if set.Questions[i].ID == "" {
			set.Questions[i].ID = fmt.Sprintf("q-%d", i+1)
		}
	}
	return set, nil
}
