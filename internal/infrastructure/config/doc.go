// Package config loads and validates the BluOS bridge configuration.
//
// Values are resolved in three layers: built-in defaults, the YAML file,
// then BLUOS_* environment variables. Credentials (MQTT password) should be
// supplied through the environment rather than the file.
//
// The adapter.devices list only seeds the devices configuration entry the
// first time the bridge starts against an empty store. After that the entry
// in the state store is authoritative and edits go there.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Adapter.Namespace)
package config
