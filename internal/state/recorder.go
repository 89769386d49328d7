package state

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"

	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/repo"
	"github.com/shaiso/Conduit/internal/telemetry"
)

// persistTimeout — таймаут двух записей одного snapshot.
const persistTimeout = 10 * time.Second

// PriorityError — приоритет задачи обновления взаимодействия со статусом ERROR.
const PriorityError = 0

// Notifier — очередь обновлений взаимодействий.
type Notifier interface {
	Enqueue(task domain.InteractionTask)
}

// Recorder сохраняет snapshots стадий.
type Recorder struct {
	store    repo.Store
	maskers  *Maskers
	notifier Notifier
	logger   *slog.Logger
}

// RecorderConfig — зависимости Recorder.
type RecorderConfig struct {
	Store    repo.Store
	Maskers  *Maskers
	Notifier Notifier
	Logger   *slog.Logger
}

// NewRecorder создаёт Recorder. Maskers и Notifier могут быть nil.
func NewRecorder(cfg RecorderConfig) *Recorder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maskers := cfg.Maskers
	if maskers == nil {
		maskers = NewMaskers()
	}
	return &Recorder{
		store:    cfg.Store,
		maskers:  maskers,
		notifier: cfg.Notifier,
		logger:   logger,
	}
}

// stateRecord — запись коллекции b2b.node.state.
type stateRecord struct {
	FlowID         string             `json:"flowId"`
	NodeID         string             `json:"nodeId"`
	InteractionID  string             `json:"interactionId"`
	TxnID          string             `json:"txnId,omitempty"`
	RemoteTxnID    string             `json:"remoteTxnId,omitempty"`
	Headers        map[string]string  `json:"headers,omitempty"`
	Params         map[string]string  `json:"params,omitempty"`
	Query          map[string]string  `json:"query,omitempty"`
	URL            string             `json:"url,omitempty"`
	Method         string             `json:"method,omitempty"`
	Status         domain.StateStatus `json:"status"`
	StatusCode     int                `json:"statusCode"`
	ContentType    string             `json:"contentType"`
	InputFormatID  string             `json:"inputFormatId,omitempty"`
	OutputFormatID string             `json:"outputFormatId,omitempty"`
	Payload        PayloadStats       `json:"payload"`
	ResponseData   PayloadStats       `json:"responseData"`
	PayloadMasked  bool               `json:"payloadMasked"`
	ResponseMasked bool               `json:"responseMasked"`
	Metadata       domain.Metadata    `json:"_metadata"`
}

// dataRecord — запись коллекции b2b.node.state.data.
type dataRecord struct {
	FlowID        string          `json:"flowId"`
	NodeID        string          `json:"nodeId"`
	InteractionID string          `json:"interactionId"`
	Body          any             `json:"body,omitempty"`
	ResponseBody  any             `json:"responseBody,omitempty"`
	BatchList     []any           `json:"batchList,omitempty"`
	DataType      string          `json:"dataType"`
	Metadata      domain.Metadata `json:"_metadata"`
}

// Clone возвращает глубокую копию snapshot через JSON.
func Clone(st *domain.ExecutionState) (*domain.ExecutionState, error) {
	raw, err := sonic.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	var out domain.ExecutionState
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &out, nil
}

// Record маскирует копию st и записывает её в хранилище.
//
// st не изменяется. Ошибки логируются и не возвращаются: к этому моменту
// результат стадии уже определён. Запись данных выполняется только после
// успешной записи состояния.
func (r *Recorder) Record(ctx context.Context, app string, st *domain.ExecutionState) {
	logger := r.logger.With(
		"flow_id", st.FlowID,
		"stage_id", st.StageID,
		"interaction_id", st.InteractionID,
		"txn_id", st.TxnID(),
		"remote_txn_id", st.RemoteTxnID(),
	)

	if st.Status == domain.StatusError && r.notifier != nil {
		defer r.notifier.Enqueue(domain.InteractionTask{
			FlowID:        st.FlowID,
			App:           app,
			InteractionID: st.InteractionID,
			TxnID:         st.TxnID(),
			RemoteTxnID:   st.RemoteTxnID(),
			Status:        st.Status,
			Priority:      PriorityError,
		})
	}

	clone, err := Clone(st)
	if err != nil {
		logger.Error("clone state failed", "error", err)
		return
	}

	payloadMasked := r.maskers.Apply(clone.InputFormatID, clone.Body)
	responseMasked := r.maskers.Apply(clone.OutputFormatID, clone.ResponseBody)

	clone.Metadata.LastUpdated = time.Now()
	key := clone.Key()

	stateDoc := stateRecord{
		FlowID:         clone.FlowID,
		NodeID:         clone.StageID,
		InteractionID:  clone.InteractionID,
		TxnID:          clone.TxnID(),
		RemoteTxnID:    clone.RemoteTxnID(),
		Headers:        clone.Headers,
		Params:         clone.Params,
		Query:          clone.Query,
		URL:            clone.URL,
		Method:         clone.Method,
		Status:         clone.Status,
		StatusCode:     clone.StatusCode,
		ContentType:    clone.ContentType,
		InputFormatID:  clone.InputFormatID,
		OutputFormatID: clone.OutputFormatID,
		Payload:        Stats(clone.Body),
		ResponseData:   Stats(clone.ResponseBody),
		PayloadMasked:  payloadMasked,
		ResponseMasked: responseMasked,
		Metadata:       clone.Metadata,
	}

	dataDoc := dataRecord{
		FlowID:        clone.FlowID,
		NodeID:        clone.StageID,
		InteractionID: clone.InteractionID,
		Body:          clone.Body,
		ResponseBody:  clone.ResponseBody,
		BatchList:     clone.BatchList,
		DataType:      clone.ContentType,
		Metadata:      clone.Metadata,
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	logger.Debug("upsert stage state", "state_id", st.ID, "status", st.Status)

	if err := r.upsert(ctx, repo.CollectionState, key, stateDoc); err != nil {
		logger.Error("upsert stage state failed", "error", err)
		return
	}
	if err := r.upsert(ctx, repo.CollectionStateData, key, dataDoc); err != nil {
		logger.Error("upsert stage data failed", "error", err)
		return
	}
}

func (r *Recorder) upsert(ctx context.Context, collection string, key domain.StateKey, doc any) error {
	raw, err := sonic.Marshal(doc)
	if err != nil {
		telemetry.PersistFailuresTotal.WithLabelValues(collection).Inc()
		return fmt.Errorf("marshal %s: %w", collection, err)
	}
	if err := r.store.Upsert(ctx, collection, key, raw); err != nil {
		telemetry.PersistFailuresTotal.WithLabelValues(collection).Inc()
		return err
	}
	return nil
}
