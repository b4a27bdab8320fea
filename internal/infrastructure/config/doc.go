// Package config handles loading and validating the Tuya BLE bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with TUYABLE_* environment variables
//   - Validation of required fields, including paired device credentials
//   - Default value handling
//
// Security Considerations:
//   - Device local keys and MQTT passwords are secrets; keep the config file 0600
//   - DeviceConfig.String never prints uuid or local_key
//
// Usage:
//
//	cfg, err := config.Load("configs/tuyable.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range cfg.Tuya.Devices {
//	    fmt.Println(d)
//	}
package config
