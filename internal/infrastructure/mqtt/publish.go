package mqtt

import (
	"encoding/json"
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic.
//
// The call does not wait for the broker's acknowledgment; delivery
// failures are logged.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "graylogic/node/porch-1/stats")
//   - payload: The message payload (max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: ErrNotConnected without a session, or a validation error
func (s *Session) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil || !s.connected.Load() {
		return ErrNotConnected
	}

	token := s.client.Publish(topic, qos, retained, payload)
	s.watch(token, "publish", topic)
	return nil
}

// PublishJSON marshals v and publishes it with the configured QoS.
func (s *Session) PublishJSON(topic string, v any, retained bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return s.Publish(topic, data, s.qos(), retained)
}
