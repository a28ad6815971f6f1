package casestore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/safetyflow/icsr-triage/pkg/common/models"
	"gorm.io/datatypes"
)

// StatusCompleted is the store-side status of a closed case.
const StatusCompleted = "completed"

// CaseRecord is one row of the cases table. Snapshot holds the whole case;
// the other columns are the projection the dashboard reads.
type CaseRecord struct {
	ID                    string         `json:"id" gorm:"primaryKey;column:id"`
	CaseNumber            string         `json:"case_number" gorm:"column:case_number;index"`
	Status                string         `json:"status" gorm:"column:status;index"`
	RiskScore             string         `json:"risk_score" gorm:"column:risk_score"`
	SuspectDrug           string         `json:"suspect_drug" gorm:"column:suspect_drug"`
	AdverseEvent          string         `json:"adverse_event" gorm:"column:adverse_event"`
	MeddraPT              string         `json:"meddra_pt" gorm:"column:meddra_pt"`
	ReporterType          string         `json:"reporter_type" gorm:"column:reporter_type"`
	Narrative             string         `json:"narrative" gorm:"column:narrative"`
	Snapshot              datatypes.JSON `json:"-" gorm:"column:snapshot"`
	CreatedAt             time.Time      `json:"created_at" gorm:"column:created_at;index"`
	UpdatedAt             time.Time      `json:"updated_at" gorm:"column:updated_at"`
	CompletedAt           *time.Time     `json:"completed_at,omitempty" gorm:"column:completed_at"`
	ExtractionCompletedAt *time.Time     `json:"extraction_completed_at,omitempty" gorm:"column:extraction_completed_at"`
}

func (CaseRecord) TableName() string {
	return "cases"
}

func storeStatus(s models.CaseStatus) string {
	if s == models.StatusClosed {
		return StatusCompleted
	}
	return string(s)
}

// NewCaseRecord projects a case onto its table row.
func NewCaseRecord(c models.Case) (CaseRecord, error) {
	snapshot, err := json.Marshal(c)
	if err != nil {
		return CaseRecord{}, fmt.Errorf("failed to encode case snapshot: %w", err)
	}

	rec := CaseRecord{
		ID:           c.ID,
		CaseNumber:   c.CaseNumber,
		Status:       storeStatus(c.Status),
		Narrative:    c.NarrativeText,
		ReporterType: string(c.ReporterPersona()),
		Snapshot:     datatypes.JSON(snapshot),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.RiskAnalysis != nil {
		rec.RiskScore = c.RiskAnalysis.Level.Label()
	}
	if x := c.ExtractedData; x != nil {
		rec.SuspectDrug = x.SuspectDrug.Text()
		rec.AdverseEvent = x.AdverseEvent.Text()
		rec.MeddraPT = x.AdverseEvent.MeddraPT
		at := c.UpdatedAt
		rec.ExtractionCompletedAt = &at
	}
	switch c.Status {
	case models.StatusReadyForReview, models.StatusClosed:
		at := c.UpdatedAt
		if c.RespondedAt != nil {
			at = *c.RespondedAt
		}
		rec.CompletedAt = &at
	}
	return rec, nil
}

// Case decodes the snapshot column.
func (r CaseRecord) Case() (models.Case, error) {
	var c models.Case
	if len(r.Snapshot) == 0 {
		return c, fmt.Errorf("case %s has no snapshot", r.ID)
	}
	if err := json.Unmarshal(r.Snapshot, &c); err != nil {
		return c, fmt.Errorf("failed to decode case %s: %w", r.ID, err)
	}
	return c, nil
}

func formatTime(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Row is the loosely typed projection published on the change feed.
func (r CaseRecord) Row() models.CaseRow {
	created := r.CreatedAt
	return models.CaseRow{
		"id":                      r.ID,
		"case_number":             r.CaseNumber,
		"created_at":              formatTime(&created),
		"status":                  r.Status,
		"risk_score":              r.RiskScore,
		"suspect_drug":            r.SuspectDrug,
		"adverse_event":           r.AdverseEvent,
		"meddra_pt":               r.MeddraPT,
		"reporter_type":           r.ReporterType,
		"narrative":               r.Narrative,
		"completed_at":            formatTime(r.CompletedAt),
		"extraction_completed_at": formatTime(r.ExtractionCompletedAt),
	}
}
