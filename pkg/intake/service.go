// Package intake runs the triage pipeline for a case: narrative validation,
// extraction, gap analysis, risk scoring, follow-up questions, outreach and
// reporter responses.
package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/safetyflow/icsr-triage/pkg/caseflow"
	"github.com/safetyflow/icsr-triage/pkg/casestore"
	"github.com/safetyflow/icsr-triage/pkg/common/logger"
	"github.com/safetyflow/icsr-triage/pkg/common/models"
	"github.com/safetyflow/icsr-triage/pkg/gap"
	"github.com/safetyflow/icsr-triage/pkg/llm"
	"github.com/safetyflow/icsr-triage/pkg/observability/metrics"
	"github.com/safetyflow/icsr-triage/pkg/questions"
	"github.com/safetyflow/icsr-triage/pkg/redact"
	"github.com/safetyflow/icsr-triage/pkg/risk"
	"github.com/sirupsen/logrus"
)

// ErrNoExtraction is returned by steps that need extracted case data.
var ErrNoExtraction = errors.New("case has no extracted data")

var errNotConfigured = errors.New("service not configured")

// Question and outreach sources reported to callers.
const (
	SourceAI       = "ai"
	SourceTemplate = "template"
)

type Extractor interface {
	Extract(ctx context.Context, narrative string) (*models.ExtractionRecord, error)
}

type QuestionWriter interface {
	GenerateQuestions(ctx context.Context, req llm.QuestionRequest) (llm.QuestionSet, error)
}

type OutreachWriter interface {
	AdaptOutreach(ctx context.Context, req llm.OutreachRequest) (models.OutreachMessage, error)
}

type CaseRepository interface {
	Upsert(ctx context.Context, c models.Case) (models.CaseRow, error)
	Get(ctx context.Context, id string) (models.Case, error)
}

type DraftCache interface {
	Save(ctx context.Context, c models.Case) error
	Load(ctx context.Context, id string) (models.Case, error)
	Delete(ctx context.Context, id string) error
}

type RowPublisher interface {
	PublishRow(ctx context.Context, row models.CaseRow) error
}

type Dependencies struct {
	Lifecycle *caseflow.Lifecycle
	Validator *Validator
	Redactor  *redact.Redactor
	Extractor Extractor
	Questions QuestionWriter
	Fallback  *questions.Generator
	Outreach  OutreachWriter
	Repo      CaseRepository
	Drafts    DraftCache
	Publisher RowPublisher
}

type Service struct {
	lifecycle *caseflow.Lifecycle
	validator *Validator
	redactor  *redact.Redactor
	extractor Extractor
	questions QuestionWriter
	fallback  *questions.Generator
	outreach  OutreachWriter
	repo      CaseRepository
	drafts    DraftCache
	publisher RowPublisher
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		lifecycle: deps.Lifecycle,
		validator: deps.Validator,
		redactor:  deps.Redactor,
		extractor: deps.Extractor,
		questions: deps.Questions,
		fallback:  deps.Fallback,
		outreach:  deps.Outreach,
		repo:      deps.Repo,
		drafts:    deps.Drafts,
		publisher: deps.Publisher,
	}
	if s.lifecycle == nil {
		s.lifecycle = caseflow.NewLifecycle()
	}
	if s.validator == nil {
		s.validator = NewValidator(50)
	}
	if s.fallback == nil {
		s.fallback = questions.NewGenerator(questions.DefaultTemplates())
	}
	return s
}

// QuestionsResult tells the caller where the question set came from.
type QuestionsResult struct {
	Case      models.Case `json:"case"`
	Source    string      `json:"source"`
	Reasoning string      `json:"reasoning,omitempty"`
}

// ReporterForm is what the reporter portal renders.
type ReporterForm struct {
	CaseID          string                    `json:"caseId"`
	CaseNumber      string                    `json:"caseNumber"`
	Persona         models.ReporterType       `json:"persona"`
	DrugName        string                    `json:"drugName,omitempty"`
	AdverseEvent    string                    `json:"adverseEvent,omitempty"`
	Questions       []models.FollowUpQuestion `json:"questions"`
	Outreach        *models.OutreachMessage   `json:"outreach,omitempty"`
	Status          models.CaseStatus         `json:"status"`
	StatusLabel     string                    `json:"statusLabel"`
	AlreadyAnswered bool                      `json:"alreadyAnswered"`
}

// Submit validates a narrative, creates the case and runs extraction, gap
// analysis and risk scoring. Nothing is stored if extraction fails.
func (s *Service) Submit(ctx context.Context, narrative string) (models.Case, error) {
	if err := s.validator.Narrative(narrative); err != nil {
		return models.Case{}, err
	}

	c := s.lifecycle.InitializeNewCase(narrative)
	c, err := s.analyze(ctx, c)
	if err != nil {
		return models.Case{}, err
	}
	metrics.IncCasesSubmitted()
	return s.persist(ctx, c)
}

// RestartNarrative replaces the narrative of an existing case and reruns the
// analysis. Derived data is invalidated first. Cases past risk_classified
// return caseflow.ErrInvalidTransition.
func (s *Service) RestartNarrative(ctx context.Context, id, narrative string) (models.Case, error) {
	if err := s.validator.Narrative(narrative); err != nil {
		return models.Case{}, err
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return models.Case{}, err
	}
	if !caseflow.CanRestartNarrative(c.Status) {
		return models.Case{}, fmt.Errorf("%w: narrative is locked once follow-up is %s", caseflow.ErrInvalidTransition, c.Status)
	}

	c = s.lifecycle.UpdateNarrative(c, narrative)
	c, err = s.analyze(ctx, c)
	if err != nil {
		return models.Case{}, err
	}
	return s.persist(ctx, c)
}

func (s *Service) analyze(ctx context.Context, c models.Case) (models.Case, error) {
	log := logger.WithCase(c.ID, c.CaseNumber)

	redacted := s.redactor.Redact(c.NarrativeText)
	if n := len(redacted.Findings); n > 0 {
		metrics.AddNarrativeRedactions(n)
		log.WithField("types", redacted.Types()).Info("Masked contact details before extraction")
	}

	record, err := s.extractor.Extract(ctx, redacted.Text)
	if err != nil {
		metrics.IncExtractionFailures()
		countCollaboratorFailure(err)
		log.WithError(err).Error("Extraction failed")
		return c, err
	}
	if record == nil {
		record = &models.ExtractionRecord{}
	}

	missing := gap.Analyze(record)
	c = s.lifecycle.UpdateExtraction(c, record, missing)
	analysis := risk.Score(record, missing, nil)
	c = s.lifecycle.UpdateRiskAnalysis(c, analysis)

	log.WithFields(logrus.Fields{
		"risk_level": analysis.Level,
		"risk_score": analysis.Score,
		"missing":    len(gap.MissingLabels(missing)),
	}).Info("Case classified")
	return c, nil
}

// Get prefers the cached draft and falls back to the stored snapshot.
func (s *Service) Get(ctx context.Context, id string) (models.Case, error) {
	if s.drafts != nil {
		c, err := s.drafts.Load(ctx, id)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, casestore.ErrNotFound) {
			logger.Log.WithError(err).WithField("case_id", id).Warn("Draft cache unavailable")
		}
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) UpdateConsent(ctx context.Context, id string, consent models.ConsentStatus) (models.Case, error) {
	if err := validateConsent(consent); err != nil {
		return models.Case{}, err
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return models.Case{}, err
	}
	return s.persist(ctx, s.lifecycle.UpdateConsent(c, consent))
}

// GenerateQuestions asks the question service first and falls back to the
// template generator on any failure. persona may be empty to use the case's
// own reporter type.
func (s *Service) GenerateQuestions(ctx context.Context, id, persona string) (QuestionsResult, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return QuestionsResult{}, err
	}
	if c.ExtractedData == nil {
		return QuestionsResult{}, ErrNoExtraction
	}

	reporter := c.ReporterPersona()
	if persona != "" {
		if reporter, err = parsePersona(persona); err != nil {
			return QuestionsResult{}, err
		}
	}
	level := models.RiskMedium
	if c.RiskAnalysis != nil {
		level = c.RiskAnalysis.Level
	}

	result := QuestionsResult{Source: SourceAI}
	var qs []models.FollowUpQuestion
	if s.questions != nil {
		var set llm.QuestionSet
		set, err = s.questions.GenerateQuestions(ctx, llm.QuestionRequest{
			DrugName:      c.ExtractedData.SuspectDrug.Text(),
			AdverseEvent:  c.ExtractedData.AdverseEvent.Text(),
			MeddraCode:    c.ExtractedData.AdverseEvent.MeddraPT,
			ReporterType:  reporter,
			MissingFields: gap.MissingLabels(c.MissingFields),
			RiskLevel:     level,
		})
		qs, result.Reasoning = set.Questions, set.Reasoning
	} else {
		err = fmt.Errorf("question %w", errNotConfigured)
	}

	if err != nil {
		countCollaboratorFailure(err)
		metrics.IncQuestionFallbacks()
		logger.WithCase(c.ID, c.CaseNumber).WithError(err).Warn("Falling back to template questions")
		qs = s.fallback.Generate(c.MissingFields, level, reporter)
		result.Source = SourceTemplate
		result.Reasoning = ""
	} else if len(qs) > questions.MaxQuestions {
		qs = qs[:questions.MaxQuestions]
	}

	c = s.lifecycle.UpdateQuestions(c, qs)
	if result.Case, err = s.persist(ctx, c); err != nil {
		return QuestionsResult{}, err
	}
	return result, nil
}

// PrepareOutreach drafts the outreach message for the chosen channel. An
// empty channel uses the consented preference, then email.
func (s *Service) PrepareOutreach(ctx context.Context, id, channel string) (models.Case, string, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return models.Case{}, "", err
	}

	ch := models.ChannelEmail
	switch {
	case channel != "":
		if ch, err = parseChannel(channel); err != nil {
			return models.Case{}, "", err
		}
	case c.ConsentStatus != nil && c.ConsentStatus.PreferredChannel != "":
		ch = c.ConsentStatus.PreferredChannel
	}
	persona := c.ReporterPersona()

	source := SourceAI
	var msg models.OutreachMessage
	if s.outreach != nil {
		req := llm.OutreachRequest{
			ReporterType:  persona,
			Channel:       ch,
			CaseNumber:    c.CaseNumber,
			QuestionCount: len(c.FollowUpQuestions),
		}
		if c.ExtractedData != nil {
			req.DrugName = c.ExtractedData.SuspectDrug.Text()
			req.AdverseEvent = c.ExtractedData.AdverseEvent.Text()
			req.MeddraCode = c.ExtractedData.AdverseEvent.MeddraPT
		}
		msg, err = s.outreach.AdaptOutreach(ctx, req)
	} else {
		err = fmt.Errorf("outreach %w", errNotConfigured)
	}
	if err != nil {
		countCollaboratorFailure(err)
		metrics.IncOutreachFallbacks()
		logger.WithCase(c.ID, c.CaseNumber).WithError(err).Warn("Falling back to template outreach")
		msg = templateOutreach(c, persona, ch)
		source = SourceTemplate
	}

	c, err = s.persist(ctx, s.lifecycle.UpdateOutreach(c, msg))
	return c, source, err
}

// UpdateStatus moves the case forward; backward moves return
// caseflow.ErrInvalidTransition.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (models.Case, error) {
	target, err := parseStatus(status)
	if err != nil {
		return models.Case{}, err
	}
	c, err := s.Get(ctx, id)
	if err != nil {
		return models.Case{}, err
	}
	if err := caseflow.CheckTransition(c.Status, target); err != nil {
		return models.Case{}, err
	}
	return s.persist(ctx, s.lifecycle.UpdateStatus(c, target))
}

func (s *Service) ReporterForm(ctx context.Context, id string) (ReporterForm, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return ReporterForm{}, err
	}
	form := ReporterForm{
		CaseID:          c.ID,
		CaseNumber:      c.CaseNumber,
		Persona:         c.ReporterPersona(),
		Questions:       c.FollowUpQuestions,
		Outreach:        c.OutreachMessage,
		Status:          c.Status,
		StatusLabel:     c.Status.Label(),
		AlreadyAnswered: len(c.ReporterResponses) > 0,
	}
	if form.Questions == nil {
		form.Questions = []models.FollowUpQuestion{}
	}
	if c.ExtractedData != nil {
		form.DrugName = c.ExtractedData.SuspectDrug.Text()
		form.AdverseEvent = c.ExtractedData.AdverseEvent.Text()
	}
	return form, nil
}

// SubmitResponses stores the reporter's answers and merges them into the
// extraction record. Without extraction data only the answers are stored.
func (s *Service) SubmitResponses(ctx context.Context, id string, responses []models.ReporterResponse) (models.Case, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return models.Case{}, err
	}
	if err := caseflow.ValidateResponses(responses, c.FollowUpQuestions); err != nil {
		return models.Case{}, ValidationError{reason: err}
	}
	if c.Status == models.StatusClosed {
		return models.Case{}, fmt.Errorf("%w: case is closed", caseflow.ErrInvalidTransition)
	}

	now := s.lifecycle.Now()
	stamped := make([]models.ReporterResponse, len(responses))
	for i, r := range responses {
		if r.AnsweredAt.IsZero() {
			r.AnsweredAt = now
		}
		stamped[i] = r
	}

	c = s.lifecycle.UpdateReporterResponses(c, stamped)
	if c.ExtractedData != nil {
		c = s.lifecycle.MergeReporterResponses(c, stamped)
		metrics.IncResponsesMerged()
	}
	return s.persist(ctx, c)
}

// countCollaboratorFailure counts failed language model calls. A missing
// service or API key is not a failed call.
func countCollaboratorFailure(err error) {
	if errors.Is(err, errNotConfigured) || errors.Is(err, llm.ErrNotConfigured) {
		return
	}
	metrics.IncCollaboratorFailures()
}

// persist writes the case to the store, refreshes the draft and publishes the
// row. Closed cases drop their draft. Only the store write can fail the call.
func (s *Service) persist(ctx context.Context, c models.Case) (models.Case, error) {
	log := logger.WithCase(c.ID, c.CaseNumber)

	row, err := s.repo.Upsert(ctx, c)
	if err != nil {
		log.WithError(err).Error("Failed to store case")
		return models.Case{}, fmt.Errorf("storing case: %w", err)
	}
	if s.drafts != nil {
		if c.Status == models.StatusClosed {
			if err := s.drafts.Delete(ctx, c.ID); err != nil {
				log.WithError(err).Warn("Failed to drop draft")
			}
		} else if err := s.drafts.Save(ctx, c); err != nil {
			log.WithError(err).Warn("Failed to cache draft")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRow(ctx, row); err != nil {
			log.WithError(err).Warn("Failed to publish case change")
		}
	}
	log.WithField("status", c.Status).Debug("Case stored")
	return c, nil
}
