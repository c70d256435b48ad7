package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bundle-admin/internal/common"
	"github.com/noah-isme/bundle-admin/internal/obs"
	"github.com/noah-isme/bundle-admin/internal/shopify"
)

// Shopify webhook headers.
const (
	HeaderHMAC      = "X-Shopify-Hmac-Sha256"
	HeaderTopic     = "X-Shopify-Topic"
	HeaderShop      = "X-Shopify-Shop-Domain"
	HeaderWebhookID = "X-Shopify-Webhook-Id"
)

const defaultMaxBody = 1 << 20

// Enqueuer publishes tasks; *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Intake is the HTTP endpoint Shopify delivers webhooks to. It verifies the
// signature, drops replays and queues the webhook. Without a queue the
// webhook is processed inline.
type Intake struct {
	Secret      string
	Replay      *redis.Client
	ReplayTTL   time.Duration
	Queue       Enqueuer
	Processor   *Processor
	MaxAttempts int
	MaxBody     int64
	Logger      zerolog.Logger
}

// Verify reports whether signature is the base64 HMAC-SHA256 of body under secret.
func Verify(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the signature Shopify would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ServeHTTP implements http.Handler.
func (in Intake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topic := NormalizeTopic(r.Header.Get(HeaderTopic))
	limit := in.MaxBody
	if limit <= 0 {
		limit = defaultMaxBody
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		obs.IncWebhook(topic, "bad_body")
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	if int64(len(body)) > limit {
		obs.IncWebhook(topic, "too_large")
		common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "payload too large", nil)
		return
	}
	if !Verify(in.Secret, body, r.Header.Get(HeaderHMAC)) {
		obs.IncWebhook(topic, "invalid_signature")
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}
	if !Supported(topic) {
		obs.IncWebhook(topic, "unhandled")
		common.JSONError(w, http.StatusNotFound, "UNHANDLED_TOPIC", "Unhandled webhook topic", nil)
		return
	}
	shop := shopify.NormalizeShopDomain(r.Header.Get(HeaderShop))
	if shop == "" {
		obs.IncWebhook(topic, "bad_shop")
		common.JSONError(w, http.StatusBadRequest, "MISSING_SHOP", "missing shop domain", nil)
		return
	}
	ctx := r.Context()
	obs.AnnotateShop(ctx, shop)
	env := Envelope{
		ID:      r.Header.Get(HeaderWebhookID),
		Topic:   topic,
		Shop:    shop,
		Payload: body,
	}
	if env.ID == "" {
		env.ID = common.Sha256Hex(topic + "|" + shop + "|" + string(body))
	}
	logger := in.Logger.With().Str("topic", topic).Str("shop", shop).Str("webhook_id", env.ID).Logger()

	if in.Replay != nil && in.ReplayTTL > 0 {
		ok, err := in.Replay.SetNX(ctx, "wh:shopify:"+env.ID, "1", in.ReplayTTL).Result()
		if err != nil {
			obs.IncWebhook(topic, "replay_store_error")
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", "replay store unavailable", nil)
			return
		}
		if !ok {
			obs.IncWebhook(topic, "duplicate")
			logger.Debug().Msg("duplicate webhook ignored")
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	if in.Queue != nil {
		if err := in.enqueue(ctx, env); err != nil {
			obs.IncWebhook(topic, "enqueue_error")
			logger.Error().Err(err).Msg("enqueue webhook")
			in.forget(env.ID)
			common.JSONError(w, http.StatusInternalServerError, "ENQUEUE_ERROR", "failed to queue webhook", nil)
			return
		}
		obs.IncWebhook(topic, "enqueued")
		w.WriteHeader(http.StatusOK)
		return
	}

	if in.Processor == nil {
		obs.IncWebhook(topic, "not_configured")
		common.JSONError(w, http.StatusInternalServerError, "WEBHOOKS_NOT_CONFIGURED", "webhook processing unavailable", nil)
		return
	}
	if err := in.Processor.Process(ctx, env); err != nil {
		obs.IncWebhook(topic, "error")
		logger.Error().Err(err).Msg("process webhook")
		if !errors.Is(err, asynq.SkipRetry) {
			in.forget(env.ID)
		}
		common.JSONError(w, http.StatusInternalServerError, "WEBHOOK_FAILED", "webhook processing failed", nil)
		return
	}
	obs.IncWebhook(topic, "processed")
	w.WriteHeader(http.StatusOK)
}

func (in Intake) enqueue(ctx context.Context, env Envelope) error {
	task, err := NewTask(env)
	if err != nil {
		return err
	}
	attempts := in.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	_, err = in.Queue.EnqueueContext(ctx, task, asynq.MaxRetry(attempts), asynq.TaskID(env.ID))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// forget clears the replay marker so Shopify's retry of a failed delivery is accepted.
func (in Intake) forget(id string) {
	if in.Replay == nil {
		return
	}
	_ = in.Replay.Del(context.Background(), "wh:shopify:"+id).Err()
}
