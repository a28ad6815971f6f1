// Package caseflow owns the ICSR case lifecycle. Every mutation takes a Case
// value and returns the updated value; the caller owns the single mutable
// slot that holds the current case.
package caseflow

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

var ErrInvalidTransition = errors.New("invalid case status transition")

type Lifecycle struct {
	now func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

type Option func(*Lifecycle)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) { l.now = now }
}

// WithRand seeds case number generation.
func WithRand(rnd *rand.Rand) Option {
	return func(l *Lifecycle) { l.rnd = rnd }
}

func NewLifecycle(opts ...Option) *Lifecycle {
	l := &Lifecycle{
		now: func() time.Time { return time.Now().UTC() },
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now is the lifecycle clock.
func (l *Lifecycle) Now() time.Time {
	return l.now()
}

func (l *Lifecycle) caseNumber(at time.Time) string {
	l.mu.Lock()
	n := l.rnd.Intn(9000) + 1000
	l.mu.Unlock()
	return fmt.Sprintf("ICSR-%d-%04d", at.Year(), n)
}

// InitializeNewCase creates a case in intake with every derived field empty.
func (l *Lifecycle) InitializeNewCase(narrative string) models.Case {
	now := l.now()
	return models.Case{
		ID:                uuid.New().String(),
		CaseNumber:        l.caseNumber(now),
		NarrativeText:     narrative,
		MissingFields:     []models.MissingField{},
		FollowUpQuestions: []models.FollowUpQuestion{},
		ReporterResponses: []models.ReporterResponse{},
		Status:            models.StatusIntake,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// UpdateNarrative replaces the narrative and invalidates everything derived
// from it.
func (l *Lifecycle) UpdateNarrative(c models.Case, narrative string) models.Case {
	c.NarrativeText = narrative
	c.ExtractedData = nil
	c.MissingFields = []models.MissingField{}
	c.RiskAnalysis = nil
	c.FollowUpQuestions = []models.FollowUpQuestion{}
	c.UpdatedAt = l.now()
	return c
}

func (l *Lifecycle) UpdateExtraction(c models.Case, extracted *models.ExtractionRecord, missing []models.MissingField) models.Case {
	c.ExtractedData = extracted
	c.MissingFields = append([]models.MissingField(nil), missing...)
	c.UpdatedAt = l.now()
	return c
}

func (l *Lifecycle) UpdateRiskAnalysis(c models.Case, analysis models.RiskAnalysis) models.Case {
	c.RiskAnalysis = &analysis
	c.Status = models.StatusRiskClassified
	c.UpdatedAt = l.now()
	return c
}

func (l *Lifecycle) UpdateConsent(c models.Case, consent models.ConsentStatus) models.Case {
	c.ConsentStatus = &consent
	c.UpdatedAt = l.now()
	return c
}

func (l *Lifecycle) UpdateQuestions(c models.Case, questions []models.FollowUpQuestion) models.Case {
	c.FollowUpQuestions = append([]models.FollowUpQuestion(nil), questions...)
	c.UpdatedAt = l.now()
	return c
}

func (l *Lifecycle) UpdateOutreach(c models.Case, message models.OutreachMessage) models.Case {
	c.OutreachMessage = &message
	c.UpdatedAt = l.now()
	return c
}

// UpdateStatus sets the status and stamps sentAt/respondedAt. It does not
// check the transition; callers gate it with CanTransition.
func (l *Lifecycle) UpdateStatus(c models.Case, status models.CaseStatus) models.Case {
	now := l.now()
	c.Status = status
	c.UpdatedAt = now
	switch status {
	case models.StatusFollowupSent:
		c.SentAt = &now
	case models.StatusResponseReceived:
		c.RespondedAt = &now
	}
	return c
}

// UpdateReporterResponses stores answers without merging them into the
// extraction record.
func (l *Lifecycle) UpdateReporterResponses(c models.Case, responses []models.ReporterResponse) models.Case {
	c.ReporterResponses = append([]models.ReporterResponse(nil), responses...)
	c.UpdatedAt = l.now()
	return c
}

// MergeReporterResponses folds reporter answers back into the extraction
// record, marks the answered gaps available and moves the case to
// ready_for_review. Without extraction data the case is returned unchanged.
func (l *Lifecycle) MergeReporterResponses(c models.Case, responses []models.ReporterResponse) models.Case {
	if c.ExtractedData == nil {
		return c
	}

	extracted := c.ExtractedData.Clone()
	missing := append([]models.MissingField(nil), c.MissingFields...)

	for _, resp := range responses {
		if resp.Answer.IsEmpty() {
			continue
		}
		if slot, ok := extracted.Field(resp.Field); ok {
			value := resp.Answer.String()
			slot.Value = &value
			slot.Found = true
			slot.Confidence = 1.0
		}
		for i := range missing {
			if missing[i].Field == resp.Field {
				missing[i].Available = true
			}
		}
	}

	now := l.now()
	c.ExtractedData = extracted
	c.MissingFields = missing
	c.ReporterResponses = append([]models.ReporterResponse(nil), responses...)
	c.Status = models.StatusReadyForReview
	c.RespondedAt = &now
	c.UpdatedAt = now
	return c
}
