package retry

import (
	"encoding/json"
	"time"
)

// DLQMessage is an event whose delivery exhausted its retries, parked
// on a dead letter topic for operator inspection and replay.
type DLQMessage struct {
	// ID is the unique identifier for the message
	ID string `json:"id"`
	// OriginalTopic is the topic the message was originally sent to
	OriginalTopic string `json:"original_topic"`
	// OriginalKey is the original message key
	OriginalKey string `json:"original_key"`
	// Payload is the original message payload
	Payload json.RawMessage `json:"payload"`
	// Error is the error message that caused the failure
	Error string `json:"error"`
	// Attempts is the number of attempts made before parking
	Attempts int `json:"attempts"`
	// ParkedAt is when the message was moved to the dead letter topic
	ParkedAt time.Time `json:"parked_at"`
	// Source is the service that parked the message
	Source string `json:"source"`
}

// DLQConfig contains dead letter topic configuration
type DLQConfig struct {
	// TopicSuffix is appended to the original topic (default: ".dlq")
	TopicSuffix string
	// Source is the service name stamped on parked messages
	Source string
}

// DefaultDLQConfig returns default DLQ configuration
func DefaultDLQConfig() *DLQConfig {
	return &DLQConfig{
		TopicSuffix: ".dlq",
		Source:      "unknown",
	}
}

// Topic returns the dead letter topic for an original topic.
func (c *DLQConfig) Topic(originalTopic string) string {
	suffix := c.TopicSuffix
	if suffix == "" {
		suffix = ".dlq"
	}
	return originalTopic + suffix
}

// NewDLQMessage builds the parked message for an exhausted Result.
func (c *DLQConfig) NewDLQMessage(id, topic, key string, payload []byte, result *Result) *DLQMessage {
	errMsg := ""
	if result.LastError != nil {
		errMsg = result.LastError.Error()
	} else if result.Err != nil {
		errMsg = result.Err.Error()
	}
	return &DLQMessage{
		ID:            id,
		OriginalTopic: topic,
		OriginalKey:   key,
		Payload:       payload,
		Error:         errMsg,
		Attempts:      result.Attempts,
		ParkedAt:      time.Now(),
		Source:        c.Source,
	}
}
