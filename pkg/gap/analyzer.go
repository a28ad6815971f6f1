// Package gap partitions the ICSR field catalog into available and missing
// data points for a given extraction record.
package gap

import "github.com/safetyflow/icsr-triage/pkg/common/models"

type Entry struct {
	Field       string
	Label       string
	Priority    models.Priority
	Description string
	InputType   models.InputType
}

var catalog = []Entry{
	{Field: models.FieldSuspectDrug, Label: "Suspect Drug", Priority: models.PriorityCritical, Description: "Drug name, dose, route", InputType: models.InputDrugSearch},
	{Field: models.FieldAdverseEvent, Label: "Adverse Event", Priority: models.PriorityCritical, Description: "Event term and description", InputType: models.InputText},
	{Field: models.FieldSeverity, Label: "Severity", Priority: models.PriorityCritical, Description: "Seriousness classification", InputType: models.InputSelect},
	{Field: models.FieldEventOnsetDate, Label: "Event Onset Date", Priority: models.PriorityCritical, Description: "Date when event started", InputType: models.InputDate},
	{Field: models.FieldOutcome, Label: "Patient Outcome", Priority: models.PriorityCritical, Description: "Current status of patient", InputType: models.InputSelect},
	{Field: models.FieldLotNumber, Label: "Lot/Batch Number", Priority: models.PriorityImportant, Description: "Product lot number", InputType: models.InputText},
	{Field: models.FieldDosage, Label: "Dosage Information", Priority: models.PriorityImportant, Description: "Dose, frequency, route", InputType: models.InputText},
	{Field: models.FieldDechallenge, Label: "Dechallenge", Priority: models.PriorityImportant, Description: "Outcome after stopping drug", InputType: models.InputSelect},
	{Field: models.FieldRechallenge, Label: "Rechallenge", Priority: models.PriorityImportant, Description: "Was drug restarted?", InputType: models.InputSelect},
	{Field: models.FieldConcomitantMedications, Label: "Concomitant Medications", Priority: models.PriorityOptional, Description: "Other medications taken", InputType: models.InputMultiselect},
	{Field: models.FieldMedicalHistory, Label: "Medical History", Priority: models.PriorityOptional, Description: "Relevant medical history", InputType: models.InputText},
}

// Catalog returns a copy of the ordered field catalog.
func Catalog() []Entry {
	return append([]Entry(nil), catalog...)
}

// Analyze produces one MissingField per catalog entry, in catalog order.
// A nil record leaves every field unavailable.
func Analyze(record *models.ExtractionRecord) []models.MissingField {
	out := make([]models.MissingField, 0, len(catalog))
	for _, entry := range catalog {
		available := false
		if slot, ok := record.Field(entry.Field); ok {
			available = slot.Available()
		}
		out = append(out, models.MissingField{
			Field:       entry.Field,
			Label:       entry.Label,
			Priority:    entry.Priority,
			Description: entry.Description,
			Available:   available,
			InputType:   entry.InputType,
		})
	}
	return out
}

// MissingLabels lists the labels of unavailable fields, the form the
// question-generation service expects.
func MissingLabels(fields []models.MissingField) []string {
	var labels []string
	for _, f := range fields {
		if !f.Available {
			labels = append(labels, f.Label)
		}
	}
	return labels
}
