package casestore

import (
	"context"

	"github.com/safetyflow/icsr-triage/pkg/common/kafka"
	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

// EventCaseUpserted carries the stored row of a created or updated case.
const EventCaseUpserted = "case.upserted"

type ChangePublisher struct {
	producer *kafka.Producer
}

func NewChangePublisher(producer *kafka.Producer) *ChangePublisher {
	return &ChangePublisher{producer: producer}
}

func (p *ChangePublisher) PublishRow(ctx context.Context, row models.CaseRow) error {
	return p.producer.PublishEvent(ctx, EventCaseUpserted, row.ID(), map[string]interface{}(row))
}
