// Package config loads environment-driven configuration structs.
//
// Every rollcall package that needs settings exposes a Config struct with
// caarlos0/env tags. Load parses such a struct once per type, after reading
// an optional .env file from the working directory, and returns the cached
// copy on subsequent calls:
//
//	var cfg auth.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
package config
