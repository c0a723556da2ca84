package mqtt

import "fmt"

// Subscribe registers a handler for messages on the specified topic.
//
// The subscription is tracked and (re)applied on every successful Connect,
// so it may be registered before the first session exists. Handlers run
// inside Loop.
//
// Parameters:
//   - topic: The topic pattern to subscribe to (wildcards allowed)
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//   - handler: Callback function invoked for each message
func (s *Session) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	s.subMu.Lock()
	s.subs[topic] = subscription{topic: topic, qos: qos, handler: handler}
	s.subMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil && s.connected.Load() {
		token := s.client.Subscribe(topic, qos, s.callback(handler))
		s.watch(token, "subscribe", topic)
	}
	return nil
}

// Unsubscribe stops tracking topic and removes it from the live session.
func (s *Session) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	s.subMu.Lock()
	delete(s.subs, topic)
	s.subMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil && s.connected.Load() {
		token := s.client.Unsubscribe(topic)
		s.watch(token, "unsubscribe", topic)
	}
	return nil
}

// SubscriptionCount returns the number of tracked subscriptions.
func (s *Session) SubscriptionCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}

// HasSubscription checks if a subscription exists for the given topic.
//
// Note: This checks only the exact topic string, not pattern matching.
func (s *Session) HasSubscription(topic string) bool {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	_, exists := s.subs[topic]
	return exists
}

// restoreSubscriptions applies all tracked subscriptions. Caller holds s.mu.
func (s *Session) restoreSubscriptions() {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, sub := range s.subs {
		token := s.client.Subscribe(sub.topic, sub.qos, s.callback(sub.handler))
		s.watch(token, "subscribe", sub.topic)
	}
}
