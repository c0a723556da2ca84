// Package netsup keeps the node's network connectivity alive.
//
// Three cooperating parts run on a single poll goroutine:
//
//   - Supervisor owns the wireless link state machine
//     (Disconnected, Connecting, Connected) with a bounded connect timeout
//     and an automatic retry interval.
//   - BrokerSession is polled only while the link is up and keeps an MQTT
//     session alive with its own minimum spacing between attempts.
//   - Announcer publishes the node's discovery record once per entry into
//     Connected.
//
// Hardware and protocol access goes through the Link, Broker and Discovery
// capability interfaces, so the package is driven entirely by fakes and a
// manual Clock in tests.
//
// Nothing in this package blocks, sleeps, or returns an error from a poll.
// Failures become state transitions plus a line on the Diagnostics sink.
// Runner provides the fixed-cadence loop and marshals command-surface
// calls onto the poll goroutine with Do.
package netsup
