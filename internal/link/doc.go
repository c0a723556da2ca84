// Package link drives the node's wireless interface through NetworkManager.
//
// NMCLI implements netsup.Link. Association runs in the background so the
// supervisor's poll loop never blocks on it; the supervisor observes the
// outcome through Status and applies its own timeout.
//
// Signal strength is read from /proc/net/wireless. Scan results report
// NetworkManager's signal quality converted to an approximate dBm value.
package link
