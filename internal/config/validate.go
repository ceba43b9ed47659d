package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	c.Graph.validate(result)
	c.LLM.validate(result)
	c.Search.validate(result)
	c.History.validate(result)
	c.Server.validate(result)
	c.Observability.validate(result)

	return result
}

func (g *GraphConfig) validate(result *ValidationResult) {
	uri := strings.TrimSpace(g.URI)
	if uri == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "graph.uri",
			Message: "graph connection URI is required",
			Hint:    "set graph.uri such as neo4j://localhost:7687",
		})
	} else {
		validScheme := false
		for _, scheme := range []string{"neo4j://", "neo4j+s://", "neo4j+ssc://", "bolt://", "bolt+s://", "bolt+ssc://"} {
			if strings.HasPrefix(uri, scheme) {
				validScheme = true
				break
			}
		}
		if !validScheme {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "graph.uri",
				Message: fmt.Sprintf("unsupported URI scheme in %q", uri),
				Hint:    "use a neo4j:// or bolt:// URI (optionally +s or +ssc)",
			})
		}
	}

	if strings.TrimSpace(g.Username) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "graph.username",
			Message: "graph username is required",
		})
	}

	if g.Password == "" && !g.PasswordPrompt {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "graph.password",
			Message: "no graph password configured",
			Hint:    "set graph.password, graph.password_file, or graph.password_prompt",
		})
	}

	if g.ConnectTimeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "graph.connect_timeout",
			Message: "connect_timeout cannot be negative",
		})
	}
	if g.ConnectRetryInterval < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "graph.connect_retry_interval",
			Message: "connect_retry_interval cannot be negative",
		})
	}
	if g.ConnectTimeout > 0 && g.ConnectRetryInterval == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "graph.connect_retry_interval",
			Message: "connect_retry_interval must be greater than 0 when connect_timeout is set",
			Hint:    "set a retry interval such as 2s, or set connect_timeout to 0 to disable retries",
		})
	}
	if g.ConnectTimeout > 0 && g.ConnectRetryInterval > g.ConnectTimeout {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "graph.connect_retry_interval",
			Message: "connect_retry_interval is greater than connect_timeout",
			Hint:    "only one connection attempt will be made",
		})
	}
}

func (l *LLMConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(l.APIKey) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "llm.api_key",
			Message: "model API key is required",
			Hint:    "set llm.api_key or llm.api_key_file (use @- for stdin)",
		})
	}

	if strings.TrimSpace(l.Model) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "llm.model",
			Message: "model identifier is required",
		})
	}

	if l.BaseURL != "" {
		parsed, err := url.Parse(l.BaseURL)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "llm.base_url",
				Message: fmt.Sprintf("invalid base URL %q", l.BaseURL),
				Hint:    "use a full http:// or https:// URL",
			})
		}
	}

	if l.Timeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "llm.timeout",
			Message: "timeout cannot be negative",
		})
	}
}

func (s *SearchConfig) validate(result *ValidationResult) {
	if s.MaxRepairAttempts < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "search.max_repair_attempts",
			Message: "max_repair_attempts cannot be negative",
			Hint:    "set 0 to disable repair, or a small bound such as 3",
		})
	}
	if s.MaxRepairAttempts > 10 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "search.max_repair_attempts",
			Message: "max_repair_attempts is unusually high",
			Hint:    "each attempt is a model call; bounds above 10 rarely improve outcomes",
		})
	}

	if s.MinScore < 0 || s.MinScore > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "search.min_score",
			Message: fmt.Sprintf("min_score %v is out of valid range (0.0-1.0)", s.MinScore),
		})
	}

	if s.RequestTimeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "search.request_timeout",
			Message: "request_timeout cannot be negative",
		})
	}

	if s.DefaultLimit < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "search.default_limit",
			Message: "default_limit cannot be negative",
		})
	}
}

func (h *HistoryConfig) validate(result *ValidationResult) {
	if !h.Enabled {
		return
	}

	if strings.TrimSpace(h.MyCnfFile) != "" && (strings.TrimSpace(h.ConnectionString) != "" || strings.TrimSpace(h.ConnectionStringFile) != "") {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "history.mycnf_file",
			Message: "mycnf_file is mutually exclusive with dsn/dsn_file",
			Hint:    "set either mycnf_file or dsn/dsn_file, not both",
		})
	}

	if strings.TrimSpace(h.MyCnfFile) != "" {
		settings, err := parseMyCnfFile(h.MyCnfFile)
		if err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "history.mycnf_file",
				Message: fmt.Sprintf("failed to parse my.cnf file: %v", err),
				Hint:    "provide a valid MySQL defaults file with [client] settings",
			})
		} else {
			if h.Host == "" && settings.Host != "" {
				h.Host = settings.Host
			}
			if h.Port == 0 && settings.HasPort {
				h.Port = settings.Port
			}
			if h.User == "" && settings.User != "" {
				h.User = settings.User
			}
			if h.Password == "" && settings.Password != "" {
				h.Password = settings.Password
			}
			if h.TLS.Mode == "" && settings.TLSMode != "" {
				h.TLS.Mode = settings.TLSMode
			}
			if settings.HasDBName {
				if strings.TrimSpace(h.Database) == "" {
					h.Database = settings.Database
				} else if h.Database != settings.Database {
					result.Errors = append(result.Errors, ValidationError{
						Field:   "history.database",
						Message: fmt.Sprintf("database mismatch: history.database=%q but history.mycnf_file targets %q", h.Database, settings.Database),
						Hint:    "either remove history.database or set it to match my.cnf database",
					})
				}
			}
		}
	}

	// Port range validation (only if not using connection string)
	if h.ConnectionString == "" && (h.Port < 1 || h.Port > 65535) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "history.port",
			Message: fmt.Sprintf("port %d is out of valid range (1-65535)", h.Port),
		})
	}

	h.TLS.validate(result)

	// Connection pool validation
	if h.Pool.MaxOpen < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "history.pool.max_open",
			Message: "max_open cannot be negative",
		})
	}
	if h.Pool.MaxIdle < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "history.pool.max_idle",
			Message: "max_idle cannot be negative",
		})
	}
	if h.Pool.MaxIdle > h.Pool.MaxOpen && h.Pool.MaxOpen > 0 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "history.pool.max_idle",
			Message: "max_idle is greater than max_open",
			Hint:    "idle connections will be limited to max_open",
		})
	}

	effectiveDatabase, _, err := h.EffectiveDatabaseName()
	if err != nil {
		switch {
		case strings.HasPrefix(err.Error(), "history.dsn"):
			result.Errors = append(result.Errors, ValidationError{
				Field:   "history.dsn",
				Message: err.Error(),
				Hint:    "set a valid MySQL DSN in history.dsn/history.dsn_file",
			})
		case strings.HasPrefix(err.Error(), "history.mycnf_file"):
			result.Errors = append(result.Errors, ValidationError{
				Field:   "history.mycnf_file",
				Message: err.Error(),
				Hint:    "set a valid my.cnf file and include [client] database or history.database",
			})
		case strings.Contains(err.Error(), "mismatch"):
			result.Errors = append(result.Errors, ValidationError{
				Field:   "history.database",
				Message: err.Error(),
				Hint:    "either remove history.database or set it to match the DSN/my.cnf database",
			})
		default:
			result.Errors = append(result.Errors, ValidationError{
				Field:   "history.database",
				Message: err.Error(),
				Hint:    "set history.database or include a /database in history.dsn/history.dsn_file or history.mycnf_file",
			})
		}
		return
	}

	// Keep runtime behavior deterministic for callers that consume History.Database.
	h.Database = effectiveDatabase
}

func (t *HistoryTLSConfig) validate(result *ValidationResult) {
	// Mode validation
	validModes := map[string]bool{"": true, "off": true, "skip-verify": true, "verify-ca": true, "verify-full": true}
	if !validModes[t.Mode] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "history.tls.mode",
			Message: fmt.Sprintf("invalid TLS mode %q", t.Mode),
			Hint:    "valid values are: off, skip-verify, verify-ca, verify-full",
		})
	}

	// CA file is required for verify-ca and verify-full
	caFile := t.resolveCAFile()
	if (t.Mode == "verify-ca" || t.Mode == "verify-full") && caFile == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "history.tls.ca_file",
			Message: "CA file is required for verify-ca and verify-full modes",
			Hint:    "set ca_file or ca_file_env to specify the CA certificate",
		})
	}

	// Client cert and key must both be specified or neither
	certFile := t.resolveCertFile()
	keyFile := t.resolveKeyFile()
	if (certFile != "" && keyFile == "") || (certFile == "" && keyFile != "") {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "history.tls.cert_file",
			Message: "both cert_file and key_file must be specified for client certificate authentication",
			Hint:    "provide both cert_file and key_file, or neither",
		})
	}

	if t.Mode == "skip-verify" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "history.tls.mode",
			Message: "skip-verify mode does not verify server certificates",
			Hint:    "use verify-ca or verify-full in production",
		})
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	// Port range validation
	if s.Port < 1 || s.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port),
		})
	}

	if s.SchemaRefreshMinInterval < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.schema_refresh_min_interval",
			Message: "schema_refresh_min_interval cannot be negative",
		})
	}
	if s.SchemaRefreshMaxInterval > 0 && s.SchemaRefreshMaxInterval < s.SchemaRefreshMinInterval {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.schema_refresh_max_interval",
			Message: "schema_refresh_max_interval cannot be less than schema_refresh_min_interval",
		})
	}

	if s.Admin.SchemaRefreshEnabled && s.Admin.AuthToken == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.admin.auth_token",
			Message: "admin auth token is required when schema_refresh_enabled is true",
			Hint:    "set server.admin.auth_token or server.admin.auth_token_file",
		})
	}

	// Rate limit validation
	if s.RateLimitEnabled {
		if s.RateLimitRPS <= 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.rate_limit_rps",
				Message: "rate_limit_rps must be greater than 0 when rate limiting is enabled",
			})
		}
		if s.RateLimitBurst <= 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.rate_limit_burst",
				Message: "rate_limit_burst must be greater than 0 when rate limiting is enabled",
			})
		}
	}

	if !s.RateLimitEnabled && (s.RateLimitRPS > 0 || s.RateLimitBurst > 0) {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "server.rate_limit_enabled",
			Message: "rate limit values are set but rate limiting is disabled",
			Hint:    "enable server.rate_limit_enabled to apply rate limits",
		})
	}

	// CORS validation
	if s.CORSEnabled {
		if len(s.CORSAllowedOrigins) == 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.cors_allowed_origins",
				Message: "CORS enabled but no allowed origins configured",
				Hint:    "set cors_allowed_origins or disable CORS",
			})
		}

		hasWildcard := false
		for _, origin := range s.CORSAllowedOrigins {
			if strings.TrimSpace(origin) == "*" {
				hasWildcard = true
				break
			}
		}

		if hasWildcard && s.CORSAllowCredentials {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.cors_allowed_origins",
				Message: "wildcard origin (*) cannot be used with credentials",
				Hint:    "use specific origins with credentials, or wildcard without credentials",
			})
		}

		if hasWildcard {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "server.cors_allowed_origins",
				Message: "CORS wildcard origin enabled",
				Hint:    "use specific origins in production for better security",
			})
		}
	}

	tlsEnabled := s.TLSMode != "" && s.TLSMode != "off"
	if s.CORSEnabled && tlsEnabled && len(s.CORSAllowedOrigins) > 0 {
		onlyHTTP := true
		for _, origin := range s.CORSAllowedOrigins {
			origin = strings.TrimSpace(origin)
			if origin == "" || origin == "*" {
				onlyHTTP = false
				break
			}
			if strings.HasPrefix(origin, "https://") {
				onlyHTTP = false
				break
			}
			if !strings.HasPrefix(origin, "http://") {
				onlyHTTP = false
				break
			}
		}
		if onlyHTTP {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   "server.cors_allowed_origins",
				Message: "CORS allowed origins are http:// only while TLS is enabled",
				Hint:    "use https:// origins when serving over TLS",
			})
		}
	}

	// TLS validation
	validTLSModes := map[string]bool{"": true, "off": true, "auto": true, "file": true}
	if !validTLSModes[s.TLSMode] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.tls_mode",
			Message: fmt.Sprintf("invalid TLS mode %q", s.TLSMode),
			Hint:    "valid values are: off, auto, file",
		})
	}

	if s.TLSMode == "file" {
		if s.TLSCertFile == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.tls_cert_file",
				Message: "TLS cert file required when tls_mode is 'file'",
			})
		}
		if s.TLSKeyFile == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.tls_key_file",
				Message: "TLS key file required when tls_mode is 'file'",
			})
		}
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	// Log level validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("invalid log level %q", o.Logging.Level),
			Hint:    "valid values are: debug, info, warn, error",
		})
	}

	// Log format validation
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("invalid log format %q", o.Logging.Format),
			Hint:    "valid values are: json, text",
		})
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.trace_sample_ratio",
			Message: fmt.Sprintf("trace_sample_ratio %v is out of valid range (0.0-1.0)", o.TraceSampleRatio),
		})
	}

	// OTLP protocol validation
	o.OTLP.validate("observability.otlp", result)

	// Signal-specific OTLP validation
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
	if o.Metrics != nil {
		o.Metrics.validate("observability.metrics", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".protocol",
			Message: fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			Hint:    "valid values are: grpc, http/protobuf",
		})
	}

	if o.Protocol == "http/protobuf" {
		if !validOTLPEndpoint(o.Endpoint) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   prefix + ".endpoint",
				Message: fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
				Hint:    "use host:port or a full URL",
			})
		}
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".compression",
			Message: fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			Hint:    "valid values are: none, gzip",
		})
	}

	if o.RetryMaxAttempts < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".retry_max_attempts",
			Message: "retry_max_attempts cannot be negative",
		})
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
