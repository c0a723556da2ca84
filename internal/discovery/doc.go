// Package discovery announces the node on the local network with mDNS
// (github.com/enbility/zeroconf/v3), so other devices can reach its remote
// console by name.
package discovery
