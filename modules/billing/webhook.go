package billing

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/subsync/handler"
	"github.com/dmitrymomot/subsync/pkg/archive"
	"github.com/dmitrymomot/subsync/pkg/binder"
	"github.com/dmitrymomot/subsync/pkg/logger"
	"github.com/dmitrymomot/subsync/pkg/subscription"
	"github.com/dmitrymomot/subsync/pkg/webhook"
)

type webhookRequest struct {
	Payload   []byte
	Signature string
}

// bindWebhook keeps the body byte-exact for signature verification.
func bindWebhook(maxSize int64) handler.Bind {
	return func(r *http.Request, v any) error {
		req, ok := v.(*webhookRequest)
		if !ok {
			return errors.New("billing: webhook binder needs *webhookRequest")
		}
		body, err := binder.Body(r, maxSize)
		if err != nil {
			return err
		}
		req.Payload = body
		req.Signature = r.Header.Get(webhook.SignatureHeader)
		return nil
	}
}

type receivedResponse struct {
	Received bool `json:"received"`
}

func (m *Module) webhook(ctx handler.Context, req webhookRequest) handler.Response {
	started := time.Now()

	if err := m.verifier.Verify(req.Payload, req.Signature); err != nil {
		m.metrics.observeWebhook("", OutcomeRejected, started)
		if webhook.IsSignatureError(err) {
			m.log.WarnContext(ctx, "webhook signature rejected", logger.Error(err))
			return handler.JSONError(errInvalidSignature)
		}
		return handler.Fail(err)
	}

	ev, err := subscription.ParseEvent(req.Payload)
	if err != nil {
		m.metrics.observeWebhook("", OutcomeInvalid, started)
		m.log.WarnContext(ctx, "webhook payload rejected", logger.Error(err))
		return handler.JSONError(errInvalidEvent)
	}

	m.archive(ctx, ev, req.Payload)

	res, err := m.engine.Apply(ctx, ev)
	if err != nil {
		m.metrics.observeWebhook(string(ev.Kind), OutcomeFailed, started)
		m.log.ErrorContext(ctx, "webhook processing failed",
			logger.EventID(ev.ID),
			logger.EventType(string(ev.Kind)),
			logger.Error(err),
		)
		return handler.JSONError(errWebhookFailed)
	}

	m.metrics.observeWebhook(string(ev.Kind), string(res.Outcome), started)
	return handler.JSON(receivedResponse{Received: true})
}

// archive is best effort: failures are logged and the delivery is still applied.
func (m *Module) archive(ctx handler.Context, ev subscription.Event, payload []byte) {
	key, err := m.archiver.Archive(ctx, archive.Entry{
		EventID:  ev.ID,
		Kind:     string(ev.Kind),
		Received: m.now(),
		Payload:  payload,
	})
	if err != nil {
		m.log.WarnContext(ctx, "webhook archive failed",
			logger.EventID(ev.ID),
			logger.Error(err),
		)
		return
	}
	if key != "" {
		m.log.DebugContext(ctx, "webhook archived", logger.EventID(ev.ID), slog.String("key", key))
	}
}
