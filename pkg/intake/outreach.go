package intake

import (
	"fmt"

	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

// templateOutreach is the approved static message used when the outreach
// service cannot draft one.
func templateOutreach(c models.Case, persona models.ReporterType, channel models.ContactChannel) models.OutreachMessage {
	isHCP := persona == models.ReporterHCP

	drug := "the medication"
	if c.ExtractedData != nil && c.ExtractedData.SuspectDrug.Available() {
		drug = c.ExtractedData.SuspectDrug.Text()
	}
	caseNumber := c.CaseNumber
	if caseNumber == "" {
		caseNumber = "ICSR-XXXX"
	}
	n := len(c.FollowUpQuestions)
	minutes := n
	if minutes < 2 {
		minutes = 2
	}
	plural := "s"
	if n == 1 {
		plural = ""
	}

	greeting := "Dear Patient,"
	condition := "your condition"
	appreciation := "Your feedback is important to us."
	if isHCP {
		greeting = "Dear Healthcare Professional,"
		condition = "the patient's condition"
		appreciation = "Your expertise is invaluable in helping us understand this case fully."
	}

	return models.OutreachMessage{
		Subject:  fmt.Sprintf("Important Safety Follow-up: Case %s", caseNumber),
		Greeting: greeting,
		Body: fmt.Sprintf("Thank you for reporting a suspected adverse event involving %s. "+
			"We've prepared a short form (estimated %d minutes) with only %d essential question%s. %s",
			drug, minutes, n, plural, appreciation),
		ContextBox: fmt.Sprintf("To complete our safety assessment, we need a few additional details about %s. "+
			"This information is critical for regulatory reporting and to help protect other patients.", condition),
		CTAText: "Complete Follow-up Form",
		Closing: "Thank you for your commitment to patient safety.\nBest regards,\nSafetyFlow Pharmacovigilance Team\n" +
			"If you have any questions or prefer to provide information by phone, please contact our pharmacovigilance team at +1-800-SAFETY-1.",
		EstimatedTime: fmt.Sprintf("%d minutes", minutes),
		Channel:       channel,
	}
}
