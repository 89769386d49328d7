package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shaiso/Conduit/internal/domain"
	"github.com/shaiso/Conduit/internal/transport"
)

// ErrTrackerStatus — трекер ответил кодом ≥400.
var ErrTrackerStatus = errors.New("tracker returned error status")

// HTTPTracker обновляет взаимодействие запросом
// PUT <base>/<app>/interaction/<flowId>/<interactionId>.
type HTTPTracker struct {
	baseURL string
	token   string
	client  transport.Doer
}

// NewHTTPTracker создаёт HTTPTracker. token передаётся как "Authorization: JWT <token>".
func NewHTTPTracker(baseURL, token string, client transport.Doer) *HTTPTracker {
	return &HTTPTracker{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

// URL возвращает адрес взаимодействия задачи.
func (t *HTTPTracker) URL(task domain.InteractionTask) string {
	return fmt.Sprintf("%s/%s/interaction/%s/%s", t.baseURL, task.App, task.FlowID, task.InteractionID)
}

// Update отправляет статус взаимодействия.
func (t *HTTPTracker) Update(ctx context.Context, task domain.InteractionTask) error {
	resp, err := t.client.Do(ctx, transport.Options{
		URL:    t.URL(task),
		Method: http.MethodPut,
		Headers: map[string]string{
			"Authorization":          "JWT " + t.token,
			domain.HeaderTxnID:       task.TxnID,
			domain.HeaderRemoteTxnID: task.RemoteTxnID,
		},
		Body: map[string]any{"status": task.Status},
	})
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %d", ErrTrackerStatus, resp.StatusCode)
	}
	return nil
}

// Publisher публикует события взаимодействий в брокер.
type Publisher interface {
	PublishInteraction(ctx context.Context, task domain.InteractionTask) error
}

// EventTracker дублирует обновления взаимодействий событиями брокера.
type EventTracker struct {
	publisher Publisher
}

// NewEventTracker создаёт EventTracker.
func NewEventTracker(p Publisher) *EventTracker {
	return &EventTracker{publisher: p}
}

// Update публикует событие.
func (t *EventTracker) Update(ctx context.Context, task domain.InteractionTask) error {
	return t.publisher.PublishInteraction(ctx, task)
}

// Multi отправляет обновление во все трекеры. Ошибки объединяются.
type Multi []Tracker

// Update вызывает каждый трекер по порядку.
func (m Multi) Update(ctx context.Context, task domain.InteractionTask) error {
	var errs []error
	for _, t := range m {
		if err := t.Update(ctx, task); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
