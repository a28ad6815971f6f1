package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

const outreachPrompt = `You are an expert medical writer specializing in pharmacovigilance communications.
Adapt outreach messages to the reporter persona while maintaining regulatory compliance.

For healthcare professionals use clinical terminology, reference ICH E2B and GVP, keep a formal tone and acknowledge their time constraints.
For patients use simple, jargon-free language, be empathetic, explain why the information matters and thank them for reporting.

Email: full letter format. WhatsApp: concise and friendly with a clear call to action. Portal: direct, the user is already signed in.

Always include privacy language, a clear call to action, the estimated time to complete and a contact for questions.`

var outreachTool = toolFunction{
	Name:        "generate_outreach_message",
	Description: "Generate persona-adapted outreach message",
	Parameters: object(map[string]interface{}{
		"subject":        str("Email subject or WhatsApp first line"),
		"greeting":       str("Personalized greeting"),
		"body":           str("Main message content"),
		"context_box":    str("Why we're reaching out section"),
		"cta_text":       str("Call-to-action button text"),
		"closing":        str("Professional closing"),
		"estimated_time": str("Estimated completion time"),
	}, "subject", "greeting", "body", "cta_text", "closing"),
}

type OutreachRequest struct {
	DrugName      string
	AdverseEvent  string
	MeddraCode    string
	ReporterType  models.ReporterType
	Channel       models.ContactChannel
	CaseNumber    string
	QuestionCount int
}

// AdaptOutreach drafts a persona and channel specific outreach message.
func (c *Client) AdaptOutreach(ctx context.Context, req OutreachRequest) (models.OutreachMessage, error) {
	count := req.QuestionCount
	if count <= 0 {
		count = 3
	}

	var b strings.Builder
	b.WriteString("Create a personalized follow-up outreach message with these parameters:\n\n")
	fmt.Fprintf(&b, "CASE REFERENCE: %s\n", orDefault(req.CaseNumber, "ICSR-XXXX"))
	fmt.Fprintf(&b, "DRUG: %s", orDefault(req.DrugName, "the medication"))
	if req.MeddraCode != "" {
		fmt.Fprintf(&b, " (MedDRA: %s)", req.MeddraCode)
	}
	fmt.Fprintf(&b, "\nADVERSE EVENT: %s\n", orDefault(req.AdverseEvent, "the reported event"))
	fmt.Fprintf(&b, "REPORTER TYPE: %s\n", personaLabel(req.ReporterType))
	fmt.Fprintf(&b, "CHANNEL: %s\n", orDefault(string(req.Channel), string(models.ChannelEmail)))
	fmt.Fprintf(&b, "NUMBER OF QUESTIONS: %d\n", count)

	var msg models.OutreachMessage
	if err := c.callTool(ctx, outreachPrompt, b.String(), outreachTool, &msg); err != nil {
		return models.OutreachMessage{}, fmt.Errorf("outreach adaptation failed: %w", err)
	}
	if msg.Subject == "" || msg.Body == "" {
		return models.OutreachMessage{}, fmt.Errorf("outreach adaptation failed: %w: empty message", ErrMalformedResponse)
	}
	msg.Channel = req.Channel
	return msg, nil
}
