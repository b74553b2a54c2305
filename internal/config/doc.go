// Package config provides configuration types and loading for the gateway.
//
// Configuration is a single YAML file with ${VAR} and ${VAR:-default}
// environment substitution. It is loaded once at startup, defaulted,
// validated and then shared read-only.
//
//	cfg, err := config.LoadConfig("configs/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
