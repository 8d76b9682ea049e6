// Package config handles loading and validating console server configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with CONSOLE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Provider client credentials belong in oauth.headers, set from the
//     environment or a file with restricted permissions (0600)
//   - The backend URL is trusted: every /api/* request is forwarded to it
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Address())
package config
