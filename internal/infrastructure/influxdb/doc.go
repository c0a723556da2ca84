// Package influxdb records link telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched writes and health monitoring. The node writes three
// measurements:
//   - link_stats: periodic snapshots (signal strength, broker state)
//   - link_event: link up and link down transitions
//   - broker_attempt: every broker connect attempt and its return code
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Node.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	session.OnAttempt(client.WriteBrokerAttempt)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are non-blocking; failures are delivered to the SetOnError callback.
package influxdb
