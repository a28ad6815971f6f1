package llm

import (
	"context"
	"fmt"

	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

const extractionPrompt = `You are an expert pharmacovigilance analyst extracting structured safety data from ICSR (Individual Case Safety Report) narratives following ICH E2B(R3) standards.

EXTRACTION REQUIREMENTS:
1. For each field, provide: value, confidence (0.0-1.0), and found (boolean)
2. Be conservative - only mark found=true if information is explicitly stated
3. Apply MedDRA coding to adverse events when identifiable

SERIOUSNESS CLASSIFICATION (ICH E2B R3 compliant):
- Fatal: Patient died
- Life-threatening: Immediate risk of death at time of event
- Hospitalization: Required or prolonged hospitalization
- Disability: Persistent/significant incapacity
- Congenital Anomaly: Birth defect in offspring
- Medically Significant: Important medical event requiring intervention
- Other Serious: Serious but not fitting above categories
- Non-serious: Not meeting seriousness criteria

Contact details in the narrative are masked as [EMAIL], [PHONE] or [SSN]; never reconstruct them.`

var extractTool = toolFunction{
	Name:        "extract_icsr_data",
	Description: "Extract structured ICSR data with ICH E2B(R3) alignment and MedDRA coding",
	Parameters:  extractionSchema(),
}

func fieldSchema(extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"value":      map[string]interface{}{"type": "string", "nullable": true},
		"confidence": map[string]interface{}{"type": "number"},
		"found":      map[string]interface{}{"type": "boolean"},
	}
	for k, v := range extra {
		props[k] = v
	}
	return object(props, "value", "confidence", "found")
}

func extractionSchema() map[string]interface{} {
	criteria := enum("fatal", "life_threatening", "hospitalization", "disability", "congenital_anomaly", "medically_significant")
	props := map[string]interface{}{
		models.FieldSuspectDrug: fieldSchema(nil),
		models.FieldAdverseEvent: fieldSchema(map[string]interface{}{
			"meddra_pt":  str("MedDRA Preferred Term"),
			"meddra_soc": str("MedDRA System Organ Class"),
		}),
		models.FieldSeverity: fieldSchema(map[string]interface{}{
			"value": enum("Fatal", "Life-threatening", "Hospitalization", "Disability", "Congenital Anomaly", "Medically Significant", "Other serious", "Non-serious"),
		}),
		models.FieldReporterType: fieldSchema(map[string]interface{}{
			"value": enum("hcp", "patient"),
		}),
		"seriousness_criteria":   array(criteria),
		"seriousness_indicators": array(str("")),
	}
	for _, name := range []string{
		models.FieldPatientDemographics, models.FieldEventOnsetDate, models.FieldLotNumber,
		models.FieldDosage, models.FieldDechallenge, models.FieldRechallenge, models.FieldOutcome,
		models.FieldConcomitantMedications, models.FieldMedicalHistory,
		models.FieldCausalityAssessment, models.FieldActionTaken,
	} {
		props[name] = fieldSchema(nil)
	}
	return object(props, models.FieldSuspectDrug, models.FieldAdverseEvent, models.FieldSeverity, "seriousness_indicators")
}

// Extract turns a (redacted) narrative into an extraction record.
func (c *Client) Extract(ctx context.Context, narrative string) (*models.ExtractionRecord, error) {
	var record models.ExtractionRecord
	user := "Extract structured safety data from this ICSR narrative:\n\n" + narrative
	if err := c.callTool(ctx, extractionPrompt, user, extractTool, &record); err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	if record.SeriousnessIndicators == nil {
		record.SeriousnessIndicators = []string{}
	}
	return &record, nil
}
