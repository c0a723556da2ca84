package mqtt

import "fmt"

// DefaultTopicPrefix is the root of all node topics.
const DefaultTopicPrefix = "graylogic/node"

// Topics builds the topic names of one node session.
//
//	t := mqtt.Topics{Prefix: "graylogic/node", ClientID: "porch-1"}
//	t.Status() // "graylogic/node/porch-1/status"
type Topics struct {
	Prefix   string
	ClientID string
}

func (t Topics) base() string {
	prefix := t.Prefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return fmt.Sprintf("%s/%s", prefix, t.ClientID)
}

// Status returns the retained online/offline status topic.
//
// Example: graylogic/node/porch-1/status
func (t Topics) Status() string {
	return t.base() + "/status"
}

// Command returns the topic the node accepts commands on.
//
// Example: graylogic/node/porch-1/command
func (t Topics) Command() string {
	return t.base() + "/command"
}

// Stats returns the topic link statistics are published on.
//
// Example: graylogic/node/porch-1/stats
func (t Topics) Stats() string {
	return t.base() + "/stats"
}

// AllStatus returns a pattern matching the status of every node.
//
// Pattern: graylogic/node/+/status
func (t Topics) AllStatus() string {
	prefix := t.Prefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/+/status"
}
