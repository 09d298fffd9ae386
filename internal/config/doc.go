// Package config defines configuration structures for the rangeview CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (RANGEVIEW_ prefix)
//   - YAML configuration file
//
// Sizes accept human-readable strings ("64KiB", "1MB") and durations use
// time.ParseDuration syntax. A zero timeout means requests never time out.
//
// # Structure
//
//	type Config struct {
//	    URL                 string
//	    Accept              string
//	    Timeout             time.Duration
//	    MaxIdleConnsPerHost int
//	    ChunkSize           int64
//	    RangeCacheEntries   int
//	    LogLevel            string
//	    MetricsAddr         string
//	    Bucket              string
//	    Prefix              string
//	    Progress            bool
//	    Force               bool
//	}
package config
