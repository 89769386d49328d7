package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition — попытка изменить финальный статус snapshot.
var ErrInvalidTransition = errors.New("invalid state transition")

// DefaultContentType — тип содержимого по умолчанию.
const DefaultContentType = "application/json"

// DefaultStatusCode — код ответа snapshot до завершения стадии.
const DefaultStatusCode = 500

// Заголовки с идентификаторами транзакции.
const (
	HeaderTxnID       = "data-stack-txn-id"
	HeaderRemoteTxnID = "data-stack-remote-txn-id"
)

// QueryInteractionID — query-параметр с идентификатором взаимодействия.
const QueryInteractionID = "interactionId"

// ExecutionState — snapshot одного вызова стадии.
//
// Создаётся state.Snapshot перед диспетчеризацией, заполняется стадией
// и сохраняется state.Recorder. Каждый вызов стадии владеет своим экземпляром.
type ExecutionState struct {
	ID            string `json:"_id"`
	FlowID        string `json:"flowId"`
	StageID       string `json:"nodeId"`
	InteractionID string `json:"interactionId"`

	Headers         map[string]string `json:"headers,omitempty"`
	Body            any               `json:"body,omitempty"`
	ResponseBody    any               `json:"responseBody,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	BatchList       []any             `json:"batchList,omitempty"`
	FileContent     string            `json:"fileContent,omitempty"`
	Params          map[string]string `json:"params,omitempty"`
	Query           map[string]string `json:"query,omitempty"`

	// URL, Method — фактический адрес удалённого вызова.
	URL    string `json:"url,omitempty"`
	Method string `json:"method,omitempty"`

	Status      StateStatus `json:"status"`
	StatusCode  int         `json:"statusCode"`
	ContentType string      `json:"contentType"`

	InputFormatID  string `json:"inputFormatId,omitempty"`
	OutputFormatID string `json:"outputFormatId,omitempty"`

	Metadata Metadata `json:"_metadata"`
}

// Metadata — служебные поля записи.
type Metadata struct {
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
	Deleted     bool      `json:"deleted"`
}

// Key возвращает составной ключ записей состояния.
func (s *ExecutionState) Key() StateKey {
	return StateKey{FlowID: s.FlowID, StageID: s.StageID, InteractionID: s.InteractionID}
}

// TxnID возвращает идентификатор транзакции из заголовков.
func (s *ExecutionState) TxnID() string {
	return s.Headers[HeaderTxnID]
}

// RemoteTxnID возвращает удалённый идентификатор транзакции из заголовков.
func (s *ExecutionState) RemoteTxnID() string {
	return s.Headers[HeaderRemoteTxnID]
}

// MarkSucceeded переводит snapshot в статус SUCCESS.
func (s *ExecutionState) MarkSucceeded(statusCode int) error {
	if err := s.transition(StatusSuccess); err != nil {
		return err
	}
	s.StatusCode = statusCode
	return nil
}

// MarkFailed переводит snapshot в статус ERROR.
func (s *ExecutionState) MarkFailed(statusCode int) error {
	if err := s.transition(StatusError); err != nil {
		return err
	}
	s.StatusCode = statusCode
	return nil
}

func (s *ExecutionState) transition(to StateStatus) error {
	if s.Status.IsTerminal() {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, s.Status, to)
	}
	s.Status = to
	s.Metadata.LastUpdated = time.Now()
	return nil
}

// Input возвращает контекст для дочернего flow: тело snapshot
// становится телом запроса, ответа ещё нет.
func (s *ExecutionState) Input() *Exchange {
	return &Exchange{
		Headers:     CloneStrings(s.Headers),
		Body:        CloneValue(s.Body),
		FileContent: s.FileContent,
		Params:      CloneStrings(s.Params),
		Query:       CloneStrings(s.Query),
	}
}

// StateKey — ключ записей состояния (flowId, stageId, interactionId).
type StateKey struct {
	FlowID        string `json:"flowId"`
	StageID       string `json:"nodeId"`
	InteractionID string `json:"interactionId"`
}

// String возвращает ключ в виде "flow/stage/interaction".
func (k StateKey) String() string {
	return k.FlowID + "/" + k.StageID + "/" + k.InteractionID
}

// Exchange — контекст запроса и ответа, по которому строится snapshot.
//
// Body — тело исходного запроса, ResponseBody — результат предыдущей стадии.
type Exchange struct {
	Headers         map[string]string
	Body            any
	ResponseBody    any
	HasResponse     bool
	ResponseHeaders map[string]string
	FileContent     string
	Params          map[string]string
	Query           map[string]string

	// StatusCode — код предыдущей стадии; 0, если стадий ещё не было.
	StatusCode int
}

// EffectiveBody возвращает тело для следующей стадии: ответ предыдущей,
// если он есть, иначе тело запроса.
func (e *Exchange) EffectiveBody() any {
	if e.HasResponse {
		return e.ResponseBody
	}
	return e.Body
}

// InteractionID возвращает идентификатор взаимодействия из query.
func (e *Exchange) InteractionID() string {
	return e.Query[QueryInteractionID]
}

// Next возвращает контекст после выполнения стадии с результатом res.
func (e *Exchange) Next(res *Result) *Exchange {
	next := *e
	next.ResponseBody = res.Body
	next.HasResponse = true
	next.ResponseHeaders = res.Headers
	next.StatusCode = res.StatusCode
	return &next
}

// Clone возвращает глубокую копию контекста.
func (e *Exchange) Clone() *Exchange {
	return &Exchange{
		Headers:         CloneStrings(e.Headers),
		Body:            CloneValue(e.Body),
		ResponseBody:    CloneValue(e.ResponseBody),
		HasResponse:     e.HasResponse,
		ResponseHeaders: CloneStrings(e.ResponseHeaders),
		FileContent:     e.FileContent,
		Params:          CloneStrings(e.Params),
		Query:           CloneStrings(e.Query),
		StatusCode:      e.StatusCode,
	}
}

// Result — результат выполнения стадии или flow.
type Result struct {
	StatusCode int
	Body       any
	Headers    map[string]string

	// Failure — класс неуспеха; FailureNone для успешных результатов.
	Failure FailureKind
}

// OK возвращает true, если код ответа 200.
func (r *Result) OK() bool {
	return r.StatusCode == 200
}

// Failed возвращает true, если код ответа ≥400.
func (r *Result) Failed() bool {
	return r.StatusCode >= 400
}

// InteractionTask — задача обновления статуса взаимодействия.
type InteractionTask struct {
	FlowID        string `json:"flowId"`
	App           string `json:"app"`
	InteractionID string `json:"interactionId"`
	TxnID         string `json:"txnId"`
	RemoteTxnID   string `json:"remoteTxnId"`

	// Status — новый статус взаимодействия.
	Status StateStatus `json:"status"`

	// Priority — меньшее значение обрабатывается раньше.
	Priority int `json:"-"`
}
