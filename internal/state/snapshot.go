package state

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conduit/internal/domain"
)

// Snapshot создаёт ExecutionState для вызова стадии stage flow flowID.
//
// Тело берётся из ответа предыдущей стадии, если он есть, иначе из запроса.
// Код ответа — код предыдущей стадии или 500.
func Snapshot(flowID string, stage *domain.Stage, ex *domain.Exchange) *domain.ExecutionState {
	now := time.Now()

	contentType := stage.ContentType
	if contentType == "" {
		contentType = domain.DefaultContentType
	}

	statusCode := ex.StatusCode
	if statusCode == 0 {
		statusCode = domain.DefaultStatusCode
	}

	return &domain.ExecutionState{
		ID:             uuid.NewString(),
		FlowID:         flowID,
		StageID:        stage.ID,
		InteractionID:  ex.InteractionID(),
		Headers:        domain.CloneStrings(ex.Headers),
		Body:           domain.CloneValue(ex.EffectiveBody()),
		FileContent:    ex.FileContent,
		Params:         domain.CloneStrings(ex.Params),
		Query:          domain.CloneStrings(ex.Query),
		Status:         domain.StatusPending,
		StatusCode:     statusCode,
		ContentType:    contentType,
		InputFormatID:  stage.InputFormat,
		OutputFormatID: stage.OutputFormat,
		Metadata: domain.Metadata{
			CreatedAt:   now,
			LastUpdated: now,
		},
	}
}
