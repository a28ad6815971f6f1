package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
)

// Label is the capitalised form stored in the cases table risk_score column.
func (l RiskLevel) Label() string {
	switch l {
	case RiskHigh:
		return "High"
	case RiskMedium:
		return "Medium"
	case RiskLow:
		return "Low"
	default:
		return ""
	}
}

type ReporterType string

const (
	ReporterHCP     ReporterType = "hcp"
	ReporterPatient ReporterType = "patient"
)

func ParseReporterType(s string) (ReporterType, bool) {
	switch ReporterType(strings.ToLower(strings.TrimSpace(s))) {
	case ReporterHCP:
		return ReporterHCP, true
	case ReporterPatient:
		return ReporterPatient, true
	default:
		return "", false
	}
}

type ContactChannel string

const (
	ChannelEmail    ContactChannel = "email"
	ChannelWhatsApp ContactChannel = "whatsapp"
	ChannelPortal   ContactChannel = "portal"
)

type Priority string

const (
	PriorityCritical  Priority = "critical"
	PriorityImportant Priority = "important"
	PriorityOptional  Priority = "optional"
)

// Rank orders priorities for follow-up selection; lower ranks come first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityImportant:
		return 1
	default:
		return 2
	}
}

type InputType string

const (
	InputText        InputType = "text"
	InputDate        InputType = "date"
	InputSelect      InputType = "select"
	InputMultiselect InputType = "multiselect"
	InputDrugSearch  InputType = "drug_search"
)

// ExtractedField is one datum pulled from a narrative by the extraction service.
type ExtractedField struct {
	Value      *string `json:"value"`
	Confidence float64 `json:"confidence"`
	Found      bool    `json:"found"`
	MeddraPT   string  `json:"meddra_pt,omitempty"`
	MeddraSOC  string  `json:"meddra_soc,omitempty"`
}

func NewExtractedField(value string, confidence float64) ExtractedField {
	v := value
	return ExtractedField{Value: &v, Confidence: confidence, Found: true}
}

func (f ExtractedField) Text() string {
	if f.Value == nil {
		return ""
	}
	return *f.Value
}

// Available reports whether the field carries evidentiary weight.
func (f ExtractedField) Available() bool {
	return f.Found && strings.TrimSpace(f.Text()) != ""
}

// Field names shared by the extraction record, the gap catalog and the
// question templates.
const (
	FieldSuspectDrug            = "suspect_drug"
	FieldAdverseEvent           = "adverse_event"
	FieldSeverity               = "severity"
	FieldReporterType           = "reporter_type"
	FieldPatientDemographics    = "patient_demographics"
	FieldEventOnsetDate         = "event_onset_date"
	FieldLotNumber              = "lot_number"
	FieldDosage                 = "dosage"
	FieldDechallenge            = "dechallenge"
	FieldRechallenge            = "rechallenge"
	FieldOutcome                = "outcome"
	FieldConcomitantMedications = "concomitant_medications"
	FieldMedicalHistory         = "medical_history"
	FieldCausalityAssessment    = "causality_assessment"
	FieldActionTaken            = "action_taken"
)

type ExtractionRecord struct {
	SuspectDrug            ExtractedField `json:"suspect_drug"`
	AdverseEvent           ExtractedField `json:"adverse_event"`
	Severity               ExtractedField `json:"severity"`
	ReporterType           ExtractedField `json:"reporter_type"`
	PatientDemographics    ExtractedField `json:"patient_demographics"`
	EventOnsetDate         ExtractedField `json:"event_onset_date"`
	LotNumber              ExtractedField `json:"lot_number"`
	Dosage                 ExtractedField `json:"dosage"`
	Dechallenge            ExtractedField `json:"dechallenge"`
	Rechallenge            ExtractedField `json:"rechallenge"`
	Outcome                ExtractedField `json:"outcome"`
	ConcomitantMedications ExtractedField `json:"concomitant_medications"`
	MedicalHistory         ExtractedField `json:"medical_history"`
	CausalityAssessment    ExtractedField `json:"causality_assessment"`
	ActionTaken            ExtractedField `json:"action_taken"`
	SeriousnessIndicators  []string       `json:"seriousness_indicators"`
	SeriousnessCriteria    []string       `json:"seriousness_criteria,omitempty"`
}

// Field returns the slot for a named field. Unknown names report false.
func (r *ExtractionRecord) Field(name string) (*ExtractedField, bool) {
	if r == nil {
		return nil, false
	}
	switch name {
	case FieldSuspectDrug:
		return &r.SuspectDrug, true
	case FieldAdverseEvent:
		return &r.AdverseEvent, true
	case FieldSeverity:
		return &r.Severity, true
	case FieldReporterType:
		return &r.ReporterType, true
	case FieldPatientDemographics:
		return &r.PatientDemographics, true
	case FieldEventOnsetDate:
		return &r.EventOnsetDate, true
	case FieldLotNumber:
		return &r.LotNumber, true
	case FieldDosage:
		return &r.Dosage, true
	case FieldDechallenge:
		return &r.Dechallenge, true
	case FieldRechallenge:
		return &r.Rechallenge, true
	case FieldOutcome:
		return &r.Outcome, true
	case FieldConcomitantMedications:
		return &r.ConcomitantMedications, true
	case FieldMedicalHistory:
		return &r.MedicalHistory, true
	case FieldCausalityAssessment:
		return &r.CausalityAssessment, true
	case FieldActionTaken:
		return &r.ActionTaken, true
	default:
		return nil, false
	}
}

// IsKnownField reports whether name addresses a slot of the extraction record.
func IsKnownField(name string) bool {
	var r ExtractionRecord
	_, ok := r.Field(name)
	return ok
}

// Clone returns a deep copy so callers can mutate slots without aliasing.
func (r *ExtractionRecord) Clone() *ExtractionRecord {
	if r == nil {
		return nil
	}
	out := *r
	for _, name := range []string{
		FieldSuspectDrug, FieldAdverseEvent, FieldSeverity, FieldReporterType,
		FieldPatientDemographics, FieldEventOnsetDate, FieldLotNumber, FieldDosage,
		FieldDechallenge, FieldRechallenge, FieldOutcome, FieldConcomitantMedications,
		FieldMedicalHistory, FieldCausalityAssessment, FieldActionTaken,
	} {
		slot, _ := out.Field(name)
		if slot.Value != nil {
			v := *slot.Value
			slot.Value = &v
		}
	}
	out.SeriousnessIndicators = append([]string(nil), r.SeriousnessIndicators...)
	out.SeriousnessCriteria = append([]string(nil), r.SeriousnessCriteria...)
	return &out
}

type MissingField struct {
	Field       string    `json:"field"`
	Label       string    `json:"label"`
	Priority    Priority  `json:"priority"`
	Description string    `json:"description"`
	Available   bool      `json:"available"`
	InputType   InputType `json:"inputType,omitempty"`
}

type RiskAnalysis struct {
	Level                 RiskLevel `json:"level"`
	Score                 int       `json:"score"`
	SeriousnessScore      int       `json:"seriousnessScore"`
	NoveltyScore          int       `json:"noveltyScore"`
	DrugProfileScore      int       `json:"drugProfileScore"`
	DataCompletenessScore int       `json:"dataCompletenessScore"`
	Factors               []string  `json:"factors"`
	SeriousnessCriteria   []string  `json:"seriousnessCriteria"`
	IsE2BR3Compliant      bool      `json:"isE2BR3Compliant"`
}

type FollowUpQuestion struct {
	ID                string    `json:"id"`
	Field             string    `json:"field"`
	Question          string    `json:"question"`
	Type              InputType `json:"type"`
	Options           []string  `json:"options,omitempty"`
	Required          bool      `json:"required"`
	Hint              string    `json:"hint,omitempty"`
	ClinicalRationale string    `json:"clinicalRationale,omitempty"`
}

type ReporterDetails struct {
	Type        ReporterType `json:"type"`
	Role        string       `json:"role,omitempty"`
	Institution string       `json:"institution,omitempty"`
	Email       string       `json:"email,omitempty"`
}

type ConsentStatus struct {
	RecontactAllowed bool             `json:"recontactAllowed"`
	AllowedChannels  []ContactChannel `json:"allowedChannels"`
	PreferredChannel ContactChannel   `json:"preferredChannel,omitempty"`
	ReporterDetails  *ReporterDetails `json:"reporterDetails,omitempty"`
}

// Answer is either a single text answer or a list of selections.
type Answer struct {
	Text   string
	Values []string
}

func TextAnswer(s string) Answer { return Answer{Text: s} }

func MultiAnswer(values ...string) Answer {
	if values == nil {
		values = []string{}
	}
	return Answer{Values: values}
}

// String joins multi-valued answers with ", ".
func (a Answer) String() string {
	if a.Values != nil {
		return strings.Join(a.Values, ", ")
	}
	return a.Text
}

func (a Answer) IsEmpty() bool {
	return strings.TrimSpace(a.String()) == ""
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Values != nil {
		return json.Marshal(a.Values)
	}
	return json.Marshal(a.Text)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*a = Answer{Text: text}
		return nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("answer must be a string or list of strings: %w", err)
	}
	*a = MultiAnswer(values...)
	return nil
}

type ReporterResponse struct {
	QuestionID string    `json:"questionId"`
	Field      string    `json:"field"`
	Answer     Answer    `json:"answer"`
	AnsweredAt time.Time `json:"answeredAt"`
}

type OutreachMessage struct {
	Subject       string         `json:"subject"`
	Greeting      string         `json:"greeting"`
	Body          string         `json:"body"`
	ContextBox    string         `json:"context_box,omitempty"`
	CTAText       string         `json:"cta_text"`
	Closing       string         `json:"closing"`
	EstimatedTime string         `json:"estimated_time,omitempty"`
	Channel       ContactChannel `json:"channel,omitempty"`
}

type CaseStatus string

const (
	StatusIntake           CaseStatus = "intake"
	StatusRiskClassified   CaseStatus = "risk_classified"
	StatusFollowupSent     CaseStatus = "followup_sent"
	StatusResponseReceived CaseStatus = "response_received"
	StatusReadyForReview   CaseStatus = "ready_for_review"
	StatusClosed           CaseStatus = "closed"
)

var statusLabels = map[CaseStatus]string{
	StatusIntake:           "Intake",
	StatusRiskClassified:   "Risk Classified",
	StatusFollowupSent:     "Follow-up Sent",
	StatusResponseReceived: "Response Received",
	StatusReadyForReview:   "Ready for Review",
	StatusClosed:           "Closed",
}

func (s CaseStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s CaseStatus) Label() string {
	return statusLabels[s]
}

// Case is the aggregate root of the triage workflow.
type Case struct {
	ID                string             `json:"id"`
	CaseNumber        string             `json:"caseNumber"`
	NarrativeText     string             `json:"narrativeText"`
	ExtractedData     *ExtractionRecord  `json:"extractedData"`
	MissingFields     []MissingField     `json:"missingFields"`
	RiskAnalysis      *RiskAnalysis      `json:"riskAnalysis"`
	ConsentStatus     *ConsentStatus     `json:"consentStatus"`
	FollowUpQuestions []FollowUpQuestion `json:"followUpQuestions"`
	ReporterResponses []ReporterResponse `json:"reporterResponses"`
	OutreachMessage   *OutreachMessage   `json:"outreachMessage,omitempty"`
	Status            CaseStatus         `json:"status"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
	SentAt            *time.Time         `json:"sentAt,omitempty"`
	RespondedAt       *time.Time         `json:"respondedAt,omitempty"`
}

// ReporterPersona derives the persona from the extracted reporter type,
// defaulting to hcp like the consent and outreach screens do.
func (c Case) ReporterPersona() ReporterType {
	if c.ConsentStatus != nil && c.ConsentStatus.ReporterDetails != nil {
		if p, ok := ParseReporterType(string(c.ConsentStatus.ReporterDetails.Type)); ok {
			return p
		}
	}
	if c.ExtractedData != nil {
		if p, ok := ParseReporterType(c.ExtractedData.ReporterType.Text()); ok {
			return p
		}
	}
	return ReporterHCP
}

// CaseRow is the loosely typed projection of a case as the store returns it.
type CaseRow map[string]interface{}

func (r CaseRow) ID() string {
	if r == nil || r["id"] == nil {
		return ""
	}
	return fmt.Sprint(r["id"])
}

type DashboardMetrics struct {
	TotalCases          int    `json:"totalCases"`
	HighRiskCases       int    `json:"highRiskCases"`
	PendingFollowups    int    `json:"pendingFollowups"`
	FirstTouchSuccess   int    `json:"firstTouchSuccess"`
	AverageResponseTime string `json:"averageResponseTime"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
