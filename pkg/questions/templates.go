package questions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/safetyflow/icsr-triage/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// Required policies for a template.
const (
	RequiredAlways   = "always"
	RequiredCritical = "critical"
	RequiredNever    = "never"
)

type Template struct {
	Field             string           `yaml:"field" json:"field"`
	HCP               string           `yaml:"hcp" json:"hcp"`
	Patient           string           `yaml:"patient" json:"patient"`
	Type              models.InputType `yaml:"type" json:"type"`
	Options           []string         `yaml:"options,omitempty" json:"options,omitempty"`
	Required          string           `yaml:"required" json:"required"`
	Hint              string           `yaml:"hint,omitempty" json:"hint,omitempty"`
	ClinicalRationale string           `yaml:"rationale,omitempty" json:"rationale,omitempty"`
}

type Library struct {
	Templates []Template `yaml:"templates" json:"templates"`
}

func (t Template) text(persona models.ReporterType) string {
	if persona == models.ReporterPatient && t.Patient != "" {
		return t.Patient
	}
	return t.HCP
}

func (t Template) required(priority models.Priority) bool {
	switch t.Required {
	case RequiredAlways:
		return true
	case RequiredCritical:
		return priority == models.PriorityCritical
	default:
		return false
	}
}

func (t Template) validate() error {
	if t.Field == "" {
		return errors.New("template field required")
	}
	if t.HCP == "" {
		return fmt.Errorf("template %s: hcp question required", t.Field)
	}
	switch t.Type {
	case models.InputText, models.InputDate, models.InputDrugSearch:
	case models.InputSelect, models.InputMultiselect:
		if len(t.Options) == 0 {
			return fmt.Errorf("template %s: %s requires options", t.Field, t.Type)
		}
	default:
		return fmt.Errorf("template %s: unknown type %q", t.Field, t.Type)
	}
	switch t.Required {
	case RequiredAlways, RequiredCritical, RequiredNever:
	default:
		return fmt.Errorf("template %s: unknown required policy %q", t.Field, t.Required)
	}
	return nil
}

// LoadTemplates reads a YAML template library. An empty path yields the
// built-in library.
func LoadTemplates(path string) (Library, error) {
	if path == "" {
		return DefaultTemplates(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultTemplates(), err
	}
	return ParseTemplates(content)
}

func ParseTemplates(content []byte) (Library, error) {
	var lib Library
	if err := yaml.Unmarshal(content, &lib); err != nil {
		return Library{}, err
	}
	if len(lib.Templates) == 0 {
		return Library{}, errors.New("no question templates configured")
	}
	seen := make(map[string]struct{}, len(lib.Templates))
	for _, t := range lib.Templates {
		if err := t.validate(); err != nil {
			return Library{}, err
		}
		if _, dup := seen[t.Field]; dup {
			return Library{}, fmt.Errorf("duplicate template for field %s", t.Field)
		}
		seen[t.Field] = struct{}{}
	}
	return lib, nil
}

// DefaultTemplates is the approved question library. Severity has no entry:
// seriousness is classified by the analyst, not asked of the reporter.
func DefaultTemplates() Library {
	return Library{Templates: []Template{
		{
			Field:             models.FieldSuspectDrug,
			HCP:               "Please confirm the suspect product name, strength and route of administration.",
			Patient:           "What is the name of the medicine you were taking when this happened?",
			Type:              models.InputDrugSearch,
			Required:          RequiredAlways,
			Hint:              "Brand or generic name as shown on the pack",
			ClinicalRationale: "A suspect product is one of the four minimum criteria for a valid ICSR.",
		},
		{
			Field:             models.FieldAdverseEvent,
			HCP:               "Please describe the adverse event, including the clinical diagnosis if established.",
			Patient:           "Can you describe what happened and how you felt?",
			Type:              models.InputText,
			Required:          RequiredAlways,
			ClinicalRationale: "The event term drives MedDRA coding and expectedness assessment.",
		},
		{
			Field:             models.FieldEventOnsetDate,
			HCP:               "What was the date of onset of the adverse event?",
			Patient:           "When did you first notice the problem?",
			Type:              models.InputDate,
			Required:          RequiredAlways,
			Hint:              "An approximate date is fine if you are unsure",
			ClinicalRationale: "Time to onset establishes the temporal relationship to the suspect drug.",
		},
		{
			Field:   models.FieldOutcome,
			HCP:     "What is the current outcome of the event?",
			Patient: "How are you feeling now?",
			Type:    models.InputSelect,
			Options: []string{
				"Recovered/Resolved",
				"Recovering/Resolving",
				"Not recovered/Not resolved",
				"Recovered with sequelae",
				"Fatal",
				"Unknown",
			},
			Required:          RequiredAlways,
			ClinicalRationale: "Outcome is required for seriousness and case closure decisions.",
		},
		{
			Field:             models.FieldLotNumber,
			HCP:               "Please provide the lot/batch number of the suspect product, if available.",
			Patient:           "Do you still have the medicine box? If so, what is the batch or lot number printed on it?",
			Type:              models.InputText,
			Required:          RequiredCritical,
			Hint:              "Usually printed near the expiry date",
			ClinicalRationale: "Lot numbers allow quality investigations and signal detection per batch.",
		},
		{
			Field:             models.FieldDosage,
			HCP:               "What dose, frequency and route were administered?",
			Patient:           "How much of the medicine did you take, and how often?",
			Type:              models.InputText,
			Required:          RequiredCritical,
			ClinicalRationale: "Dosing information supports dose-response assessment.",
		},
		{
			Field:   models.FieldDechallenge,
			HCP:     "Was the suspect drug withdrawn, and if so did the event abate?",
			Patient: "Did you stop taking the medicine, and did you feel better afterwards?",
			Type:    models.InputSelect,
			Options: []string{
				"Drug stopped - event improved",
				"Drug stopped - event did not improve",
				"Drug not stopped",
				"Unknown",
			},
			Required:          RequiredCritical,
			ClinicalRationale: "A positive dechallenge is strong evidence of causality.",
		},
		{
			Field:   models.FieldRechallenge,
			HCP:     "Was the suspect drug reintroduced, and if so did the event recur?",
			Patient: "Did you start the medicine again, and did the problem come back?",
			Type:    models.InputSelect,
			Options: []string{
				"Restarted - event recurred",
				"Restarted - event did not recur",
				"Not restarted",
				"Unknown",
			},
			Required:          RequiredCritical,
			ClinicalRationale: "A positive rechallenge is the strongest single causality criterion.",
		},
		{
			Field:   models.FieldConcomitantMedications,
			HCP:     "Please list any concomitant medications taken in the three months before onset.",
			Patient: "Were you taking any other medicines, vitamins or supplements at the same time?",
			Type:    models.InputMultiselect,
			Options: []string{
				"None",
				"Corticosteroids",
				"Anticoagulants",
				"Antibiotics",
				"NSAIDs",
				"Herbal or dietary supplements",
				"Other",
			},
			Required:          RequiredNever,
			Hint:              "Select all that apply",
			ClinicalRationale: "Concomitant drugs are alternative causes and interaction candidates.",
		},
		{
			Field:             models.FieldMedicalHistory,
			HCP:               "Please summarise relevant medical history, including hepatic or renal impairment.",
			Patient:           "Do you have any other health conditions we should know about?",
			Type:              models.InputText,
			Required:          RequiredNever,
			ClinicalRationale: "Pre-existing conditions are confounders for causality assessment.",
		},
	}}
}
