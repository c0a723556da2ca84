// Package config handles loading and validating Gray Logic Node configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Configuration here is static for the life of the process. Values the
// operator edits at runtime (network credentials, host name, broker
// endpoint) live in the settings store; the defaults section of the YAML
// file only seeds that store.
//
// Security Considerations:
//   - Network and broker passwords should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Supervisor.ConnectTimeout)
package config
