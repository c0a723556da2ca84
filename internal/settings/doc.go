// Package settings is the node's configuration store: network credentials,
// host name, broker endpoint and console settings that the operator can
// change at runtime and that survive power loss.
//
// The persisted layout is a single fixed row. There is no version tag: if
// the layout on flash does not match the current one, the store discards it
// and seeds the defaults again.
//
// Readers (the connectivity supervisor and the broker session) call
// Credentials and BrokerEndpoint on every attempt rather than caching.
package settings
