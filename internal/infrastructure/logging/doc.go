// Package logging provides structured logging for Gray Logic Node.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the node, plus the Diagnostics
// sink used for human-readable status lines on the operator console.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting node", "node_id", cfg.Node.ID)
//
//	diag := logging.NewDiagnostics(os.Stdout, logger)
//	diag.Printf("WiFi connected to: %s", ssid)
//
// # Security
//
// Never log network passphrases or broker passwords.
package logging
