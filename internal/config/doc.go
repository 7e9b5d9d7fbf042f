// Package config defines configuration structures for the hfget CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (HFGET_ prefix, with HF_HOME/HF_TOKEN fallbacks)
//   - YAML configuration file
//
// # Structure
//
//	type Config struct {
//	    Endpoint  string
//	    BasePath  string
//	    Token     string
//	    Progress  bool
//	    Force     bool
//	    RateLimit int64
//	    Retry     RetryConfig
//	    Integrity IntegrityConfig
//	}
//
// The download root precedence is: explicit flag > HFGET_PATH > HF_HOME >
// current directory, resolved once by ResolveBasePath before any component
// runs.
package config
