// Package webhooks receives Shopify webhooks, queues them and applies their
// effects to bundles, analytics and sessions.
package webhooks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
)

// Topics handled by the processor.
const (
	TopicProductsUpdate = "PRODUCTS_UPDATE"
	TopicProductsDelete = "PRODUCTS_DELETE"
	TopicOrdersCreate   = "ORDERS_CREATE"
	TopicAppUninstalled = "APP_UNINSTALLED"
)

// TaskPrefix is prepended to the lower-cased topic to form the task type.
const TaskPrefix = "webhook:"

// NormalizeTopic converts a header topic such as "products/update" into
// PRODUCTS_UPDATE.
func NormalizeTopic(topic string) string {
	topic = strings.TrimSpace(topic)
	topic = strings.ReplaceAll(topic, "/", "_")
	return strings.ToUpper(topic)
}

// Supported reports whether topic has a handler. Compliance topics and
// anything else are not handled.
func Supported(topic string) bool {
	switch topic {
	case TopicProductsUpdate, TopicProductsDelete, TopicOrdersCreate, TopicAppUninstalled:
		return true
	default:
		return false
	}
}

// TaskType returns the queue task type for topic.
func TaskType(topic string) string {
	return TaskPrefix + strings.ToLower(topic)
}

// Envelope is one received webhook as stored on the queue.
type Envelope struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Shop    string          `json:"shop"`
	Payload json.RawMessage `json:"payload"`
}

// NewTask encodes env as a queue task.
func NewTask(env Envelope) (*asynq.Task, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("webhooks: encode task: %w", err)
	}
	return asynq.NewTask(TaskType(env.Topic), raw), nil
}

// DecodeTask is the inverse of NewTask.
func DecodeTask(t *asynq.Task) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(t.Payload(), &env); err != nil {
		return Envelope{}, fmt.Errorf("webhooks: decode task %s: %w", t.Type(), err)
	}
	return env, nil
}
