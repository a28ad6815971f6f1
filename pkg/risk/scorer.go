// Package risk computes the ICH E2B(R3) aligned risk analysis of a case.
//
// Score is pure: identical inputs always yield identical output.
package risk

import (
	"fmt"
	"strings"

	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

// Seriousness criteria as they appear in extraction output.
const (
	CriterionFatal                = "fatal"
	CriterionLifeThreatening      = "life_threatening"
	CriterionHospitalization      = "hospitalization"
	CriterionCongenitalAnomaly    = "congenital_anomaly"
	CriterionDisability           = "disability"
	CriterionMedicallySignificant = "medically_significant"
)

// Weights in percent; they sum to 100.
const (
	weightSeriousness  = 45
	weightDrugProfile  = 25
	weightNovelty      = 15
	weightIncompletion = 15

	highThreshold   = 75
	mediumThreshold = 50

	maxFactors = 5
)

type criterion struct {
	key      string
	severity string
	score    int
	factor   string
}

// First match wins.
var criteria = []criterion{
	{key: CriterionFatal, severity: "fatal", score: 100, factor: "Fatal outcome reported"},
	{key: CriterionLifeThreatening, severity: "life threatening", score: 95, factor: "Life-threatening event"},
	{key: CriterionHospitalization, severity: "hospitalization", score: 80, factor: "Required hospitalization"},
	{key: CriterionCongenitalAnomaly, severity: "congenital anomaly", score: 85, factor: "Congenital anomaly reported"},
	{key: CriterionDisability, severity: "disability", score: 75, factor: "Resulted in disability"},
	{key: CriterionMedicallySignificant, severity: "medically significant", score: 70, factor: "Medically significant event"},
}

const (
	otherSeriousScore = 60
	nonSeriousScore   = 30
)

var drugTiers = []struct {
	keywords []string
	score    int
}{
	{keywords: []string{"immunotherapy", "checkpoint", "car-t", "gene therapy", "pembrolizumab", "nivolumab", "atezolizumab", "ipilimumab"}, score: 90},
	{keywords: []string{"chemotherapy", "biologic", "monoclonal"}, score: 75},
	{keywords: []string{"anticoagulant", "insulin"}, score: 65},
}

const defaultDrugScore = 50

var noveltyKeywords = []string{"unexpected", "rare", "novel", "first report"}

const (
	novelEventScore  = 85
	codedEventScore  = 60
	defaultNovelty   = 50
	defaultCompleted = 50
)

// Score computes the risk analysis for an extraction record. explicitCriteria
// is merged with the record's own criteria and with any criterion implied by
// the severity text.
func Score(record *models.ExtractionRecord, missing []models.MissingField, explicitCriteria []string) models.RiskAnalysis {
	if record == nil {
		record = &models.ExtractionRecord{}
	}

	severity := normalizeSeverity(record.Severity.Text())
	present := effectiveCriteria(explicitCriteria, record.SeriousnessCriteria, severity)

	seriousness := nonSeriousScore
	var matched *criterion
	for i := range criteria {
		if present[criteria[i].key] {
			matched = &criteria[i]
			seriousness = matched.score
			break
		}
	}
	if matched == nil && severity == "other serious" {
		seriousness = otherSeriousScore
	}

	completeness := completenessScore(missing)
	drugProfile := drugProfileScore(record.SuspectDrug.Text())
	meddraPT := strings.TrimSpace(record.AdverseEvent.MeddraPT)
	novelty := noveltyScore(record.AdverseEvent.Text(), meddraPT)

	weighted := seriousness*weightSeriousness +
		drugProfile*weightDrugProfile +
		novelty*weightNovelty +
		(100-completeness)*weightIncompletion
	// Integer half-up rounding of weighted/100.
	total := (weighted + 50) / 100

	level := models.RiskLow
	switch {
	case total >= highThreshold || matched != nil:
		level = models.RiskHigh
	case total >= mediumThreshold:
		level = models.RiskMedium
	}

	factors := make([]string, 0, maxFactors+2)
	if matched != nil {
		factors = append(factors, matched.factor)
	}
	indicators := record.SeriousnessIndicators
	if len(indicators) > 2 {
		indicators = indicators[:2]
	}
	factors = append(factors, indicators...)
	if drugProfile >= 75 {
		factors = append(factors, "High-risk drug class profile")
	}
	if completeness < 60 {
		factors = append(factors, "Incomplete safety data requiring follow-up")
	}
	if n := criticalMissing(missing); n > 0 {
		factors = append(factors, fmt.Sprintf("%d critical data points missing", n))
	}
	if meddraPT != "" {
		factors = append(factors, "MedDRA: "+meddraPT)
	}
	if len(factors) > maxFactors {
		factors = factors[:maxFactors]
	}

	applied := make([]string, 0, len(criteria))
	for _, c := range criteria {
		if present[c.key] {
			applied = append(applied, c.key)
		}
	}

	return models.RiskAnalysis{
		Level:                 level,
		Score:                 total,
		SeriousnessScore:      seriousness,
		NoveltyScore:          novelty,
		DrugProfileScore:      drugProfile,
		DataCompletenessScore: completeness,
		Factors:               factors,
		SeriousnessCriteria:   applied,
		IsE2BR3Compliant:      true,
	}
}

// normalizeSeverity lowercases and folds "-" and "_" into spaces so that
// "Life-threatening" and "life_threatening" compare equal.
func normalizeSeverity(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func normalizeCriterion(s string) string {
	return strings.ReplaceAll(normalizeSeverity(s), " ", "_")
}

func effectiveCriteria(explicit, extracted []string, severity string) map[string]bool {
	present := make(map[string]bool, len(criteria))
	for _, list := range [][]string{explicit, extracted} {
		for _, c := range list {
			present[normalizeCriterion(c)] = true
		}
	}
	for _, c := range criteria {
		if severity == c.severity {
			present[c.key] = true
		}
	}
	return present
}

func completenessScore(missing []models.MissingField) int {
	if len(missing) == 0 {
		return defaultCompleted
	}
	available := 0
	for _, f := range missing {
		if f.Available {
			available++
		}
	}
	n := len(missing)
	return (200*available + n) / (2 * n)
}

func drugProfileScore(drug string) int {
	drug = strings.ToLower(drug)
	if drug == "" {
		return defaultDrugScore
	}
	for _, tier := range drugTiers {
		for _, kw := range tier.keywords {
			if strings.Contains(drug, kw) {
				return tier.score
			}
		}
	}
	return defaultDrugScore
}

func noveltyScore(event, meddraPT string) int {
	event = strings.ToLower(event)
	for _, kw := range noveltyKeywords {
		if strings.Contains(event, kw) {
			return novelEventScore
		}
	}
	if meddraPT != "" {
		return codedEventScore
	}
	return defaultNovelty
}

func criticalMissing(missing []models.MissingField) int {
	n := 0
	for _, f := range missing {
		if !f.Available && f.Priority == models.PriorityCritical {
			n++
		}
	}
	return n
}
