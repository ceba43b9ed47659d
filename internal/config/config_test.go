package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   HistoryConfig
		expected string
	}{
		{
			name: "basic DSN",
			config: HistoryConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "medgraph",
				Password: "password",
				Database: "medgraph_history",
			},
			expected: "medgraph:password@tcp(localhost:3306)/medgraph_history?parseTime=true&loc=UTC",
		},
		{
			name: "with special characters in password",
			config: HistoryConfig{
				Host:     "db.example.com",
				Port:     3306,
				User:     "admin",
				Password: "p@ss:w0rd!",
				Database: "mydb",
			},
			expected: "admin:p@ss:w0rd!@tcp(db.example.com:3306)/mydb?parseTime=true&loc=UTC",
		},
		{
			name: "empty password",
			config: HistoryConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "medgraph",
				Password: "",
				Database: "medgraph_history",
			},
			expected: "medgraph:@tcp(localhost:3306)/medgraph_history?parseTime=true&loc=UTC",
		},
		{
			name: "connection string passthrough gains parseTime",
			config: HistoryConfig{
				ConnectionString: "medgraph:secret@tcp(db:3306)/medgraph_history",
			},
			expected: "medgraph:secret@tcp(db:3306)/medgraph_history?parseTime=true&loc=UTC",
		},
		{
			name: "skip-verify mode adds tls param",
			config: HistoryConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "medgraph",
				Password: "password",
				Database: "medgraph_history",
				TLS:      HistoryTLSConfig{Mode: "skip-verify"},
			},
			expected: "medgraph:password@tcp(localhost:3306)/medgraph_history?parseTime=true&loc=UTC&tls=skip-verify",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.config.DSN()
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHistoryConfig_EffectiveDatabaseName(t *testing.T) {
	t.Run("discrete database wins", func(t *testing.T) {
		cfg := HistoryConfig{Database: "medgraph_history"}
		name, source, err := cfg.EffectiveDatabaseName()
		assert.NoError(t, err)
		assert.Equal(t, "medgraph_history", name)
		assert.Equal(t, "history.database", source)
	})

	t.Run("database from DSN", func(t *testing.T) {
		cfg := HistoryConfig{ConnectionString: "user:pass@tcp(localhost:3306)/from_dsn"}
		name, source, err := cfg.EffectiveDatabaseName()
		assert.NoError(t, err)
		assert.Equal(t, "from_dsn", name)
		assert.Equal(t, "dsn", source)
	})

	t.Run("mismatch is an error", func(t *testing.T) {
		cfg := HistoryConfig{
			Database:         "medgraph_history",
			ConnectionString: "user:pass@tcp(localhost:3306)/other",
		}
		_, _, err := cfg.EffectiveDatabaseName()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch")
	})

	t.Run("no name configured is an error", func(t *testing.T) {
		cfg := HistoryConfig{}
		_, _, err := cfg.EffectiveDatabaseName()
		assert.Error(t, err)
	})
}

// TestLoad_WithEnvVars tests configuration loading from environment variables
func TestLoad_WithEnvVars(t *testing.T) {
	// Save original env vars
	origURI := os.Getenv("MGS_GRAPH_URI")
	origUser := os.Getenv("MGS_GRAPH_USERNAME")
	origModel := os.Getenv("MGS_LLM_MODEL")

	// Clean up after test
	t.Cleanup(func() {
		os.Setenv("MGS_GRAPH_URI", origURI)
		os.Setenv("MGS_GRAPH_USERNAME", origUser)
		os.Setenv("MGS_LLM_MODEL", origModel)
		os.Unsetenv("MGS_GRAPH_PASSWORD")
		os.Unsetenv("MGS_SERVER_PORT")
	})

	// Set test environment variables
	os.Setenv("MGS_GRAPH_URI", "neo4j://envhost:7687")
	os.Setenv("MGS_GRAPH_USERNAME", "envuser")
	os.Setenv("MGS_GRAPH_PASSWORD", "envpass")
	os.Setenv("MGS_LLM_MODEL", "envmodel")
	os.Setenv("MGS_SERVER_PORT", "9999")

	// Verify env var naming convention
	assert.Equal(t, "neo4j://envhost:7687", os.Getenv("MGS_GRAPH_URI"))
	assert.Equal(t, "envuser", os.Getenv("MGS_GRAPH_USERNAME"))
	assert.Equal(t, "envmodel", os.Getenv("MGS_LLM_MODEL"))
}

// Note: Full integration tests for Load() should be done in integration tests
// because Load() relies on global state (pflag.CommandLine) which is difficult
// to test in isolation without causing conflicts between tests.

func TestConfig_Validate(t *testing.T) {
	// Helper to create a valid base config
	validConfig := func() *Config {
		return &Config{
			Graph: GraphConfig{
				URI:      "neo4j://localhost:7687",
				Username: "neo4j",
				Password: "secret",
				Database: "neo4j",
			},
			LLM: LLMConfig{
				APIKey: "sk-test",
				Model:  "claude-sonnet-4-5-20250929",
			},
			Search: SearchConfig{
				MaxRepairAttempts: 3,
				MinScore:          0.5,
				DefaultLimit:      50,
			},
			History: HistoryConfig{
				Enabled:  true,
				Host:     "localhost",
				Port:     3306,
				User:     "medgraph",
				Database: "medgraph_history",
				TLS: HistoryTLSConfig{
					Mode: "off",
				},
				Pool: PoolConfig{
					MaxOpen: 10,
					MaxIdle: 2,
				},
			},
			Server: ServerConfig{
				Port: 8080,
			},
			Observability: ObservabilityConfig{
				Logging: LoggingConfig{
					Level:  "info",
					Format: "json",
				},
				OTLP: OTLPConfig{
					Protocol:    "grpc",
					Compression: "gzip",
				},
			},
		}
	}

	t.Run("valid config passes validation", func(t *testing.T) {
		cfg := validConfig()
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		assert.Empty(t, result.Errors)
	})

	t.Run("missing graph URI", func(t *testing.T) {
		cfg := validConfig()
		cfg.Graph.URI = ""
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "graph.uri")
	})

	t.Run("unsupported graph URI scheme", func(t *testing.T) {
		cfg := validConfig()
		cfg.Graph.URI = "http://localhost:7687"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "graph.uri")
	})

	t.Run("valid graph URI schemes", func(t *testing.T) {
		for _, uri := range []string{
			"neo4j://localhost:7687",
			"neo4j+s://db.example.com",
			"bolt://localhost:7687",
			"bolt+ssc://db.example.com:7687",
		} {
			cfg := validConfig()
			cfg.Graph.URI = uri
			result := cfg.Validate()
			assert.False(t, result.HasErrors(), "URI %q should be valid", uri)
		}
	})

	t.Run("missing graph password warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Graph.Password = ""
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		assert.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Field, "graph.password")
	})

	t.Run("missing model API key", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLM.APIKey = ""
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "llm.api_key")
	})

	t.Run("missing model identifier", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLM.Model = ""
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "llm.model")
	})

	t.Run("invalid model base URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLM.BaseURL = "not a url"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "llm.base_url")
	})

	t.Run("negative repair attempts", func(t *testing.T) {
		cfg := validConfig()
		cfg.Search.MaxRepairAttempts = -1
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "search.max_repair_attempts")
	})

	t.Run("high repair attempts warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Search.MaxRepairAttempts = 50
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		assert.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Field, "search.max_repair_attempts")
	})

	t.Run("min score out of range", func(t *testing.T) {
		cfg := validConfig()
		cfg.Search.MinScore = 1.5
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "search.min_score")
	})

	t.Run("invalid history port", func(t *testing.T) {
		cfg := validConfig()
		cfg.History.Port = 0
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "history.port")
	})

	t.Run("disabled history skips validation", func(t *testing.T) {
		cfg := validConfig()
		cfg.History.Enabled = false
		cfg.History.Port = 0
		cfg.History.Database = ""
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
	})

	t.Run("history mycnf mutually exclusive with dsn", func(t *testing.T) {
		cfg := validConfig()
		cfg.History.MyCnfFile = "/tmp/my.cnf"
		cfg.History.ConnectionString = "user:pass@tcp(localhost:3306)/medgraph_history"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "history.mycnf_file")
	})

	t.Run("invalid server port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Port = -1
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "server.port")
	})

	t.Run("invalid TLS mode", func(t *testing.T) {
		cfg := validConfig()
		cfg.History.TLS.Mode = "invalid"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "history.tls.mode")
	})

	t.Run("valid TLS modes", func(t *testing.T) {
		for _, mode := range []string{"", "off", "skip-verify", "verify-ca", "verify-full"} {
			cfg := validConfig()
			if mode == "verify-ca" || mode == "verify-full" {
				cfg.History.TLS.CAFile = "/path/to/ca.pem"
			}
			cfg.History.TLS.Mode = mode
			result := cfg.Validate()
			assert.False(t, result.HasErrors(), "TLS mode %q should be valid", mode)
		}
	})

	t.Run("admin refresh requires auth token", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Admin.SchemaRefreshEnabled = true
		cfg.Server.Admin.AuthToken = ""
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "server.admin.auth_token")
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.Logging.Level = "invalid"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "observability.logging.level")
	})

	t.Run("invalid log format", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.Logging.Format = "xml"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "observability.logging.format")
	})

	t.Run("invalid OTLP protocol", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.OTLP.Protocol = "http"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "observability.otlp.protocol")
	})

	t.Run("valid OTLP protocols", func(t *testing.T) {
		for _, protocol := range []string{"", "grpc", "http/protobuf"} {
			cfg := validConfig()
			cfg.Observability.OTLP.Protocol = protocol
			if protocol == "http/protobuf" {
				cfg.Observability.OTLP.Endpoint = "localhost:4318"
			}
			result := cfg.Validate()
			assert.False(t, result.HasErrors(), "protocol %q should be valid", protocol)
		}
	})

	t.Run("invalid OTLP http/protobuf endpoint", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.OTLP.Protocol = "http/protobuf"
		cfg.Observability.OTLP.Endpoint = "localhost"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "observability.otlp.endpoint")
	})

	t.Run("trace sample ratio out of range", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.TraceSampleRatio = 2.0
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "trace_sample_ratio")
	})

	t.Run("rate limit enabled without RPS", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.RateLimitEnabled = true
		cfg.Server.RateLimitRPS = 0
		cfg.Server.RateLimitBurst = 10
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "rate_limit_rps")
	})

	t.Run("rate limit enabled without burst", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.RateLimitEnabled = true
		cfg.Server.RateLimitRPS = 100
		cfg.Server.RateLimitBurst = 0
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "rate_limit_burst")
	})

	t.Run("rate limit disabled with values warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.RateLimitEnabled = false
		cfg.Server.RateLimitRPS = 100
		cfg.Server.RateLimitBurst = 10
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		assert.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Message, "rate limit values")
	})

	t.Run("CORS enabled without origins", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.CORSEnabled = true
		cfg.Server.CORSAllowedOrigins = []string{}
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "cors_allowed_origins")
	})

	t.Run("CORS wildcard with credentials", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.CORSEnabled = true
		cfg.Server.CORSAllowedOrigins = []string{"*"}
		cfg.Server.CORSAllowCredentials = true
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "wildcard")
	})

	t.Run("CORS wildcard without credentials warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.CORSEnabled = true
		cfg.Server.CORSAllowedOrigins = []string{"*"}
		cfg.Server.CORSAllowCredentials = false
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		assert.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Message, "wildcard")
	})

	t.Run("CORS http origins with TLS enabled warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.CORSEnabled = true
		cfg.Server.TLSMode = "auto"
		cfg.Server.CORSAllowedOrigins = []string{"http://example.com"}
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		assert.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Message, "http://")
	})

	t.Run("TLS file mode requires cert files", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.TLSMode = "file"
		cfg.Server.TLSCertFile = ""
		cfg.Server.TLSKeyFile = ""
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Contains(t, result.Error(), "tls_cert_file")
		assert.Contains(t, result.Error(), "tls_key_file")
	})

	t.Run("TLS auto mode valid", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.TLSMode = "auto"
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
	})

	t.Run("max_idle greater than max_open warns", func(t *testing.T) {
		cfg := validConfig()
		cfg.History.Pool.MaxOpen = 10
		cfg.History.Pool.MaxIdle = 20
		result := cfg.Validate()
		assert.False(t, result.HasErrors())
		assert.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Message, "max_idle")
	})

	t.Run("multiple errors collected", func(t *testing.T) {
		cfg := validConfig()
		cfg.History.Port = 0
		cfg.Server.Port = 0
		cfg.Observability.Logging.Level = "invalid"
		result := cfg.Validate()
		assert.True(t, result.HasErrors())
		assert.Len(t, result.Errors, 3)
	})
}

func TestParseMyCnf(t *testing.T) {
	t.Run("client section settings", func(t *testing.T) {
		settings, err := parseMyCnf(`
[client]
host = db.example.com
port = 3307
user = medgraph
password = "quoted secret"
database = medgraph_history
ssl-mode = VERIFY_IDENTITY
`)
		assert.NoError(t, err)
		assert.Equal(t, "db.example.com", settings.Host)
		assert.Equal(t, 3307, settings.Port)
		assert.True(t, settings.HasPort)
		assert.Equal(t, "medgraph", settings.User)
		assert.Equal(t, "quoted secret", settings.Password)
		assert.Equal(t, "medgraph_history", settings.Database)
		assert.True(t, settings.HasDBName)
		assert.Equal(t, "verify-full", settings.TLSMode)
	})

	t.Run("mysql section database fallback", func(t *testing.T) {
		settings, err := parseMyCnf(`
[client]
user = medgraph

[mysql]
database = fallback_db
`)
		assert.NoError(t, err)
		assert.Equal(t, "fallback_db", settings.Database)
		assert.True(t, settings.HasDBName)
	})

	t.Run("invalid port", func(t *testing.T) {
		_, err := parseMyCnf("[client]\nport = notanumber\n")
		assert.Error(t, err)
	})

	t.Run("unsupported ssl-mode", func(t *testing.T) {
		_, err := parseMyCnf("[client]\nssl-mode = SOMETHING\n")
		assert.Error(t, err)
	})
}

func TestValidationError_Error(t *testing.T) {
	t.Run("with hint", func(t *testing.T) {
		err := ValidationError{
			Field:   "test.field",
			Message: "test message",
			Hint:    "try this",
		}
		assert.Equal(t, "test.field: test message (hint: try this)", err.Error())
	})

	t.Run("without hint", func(t *testing.T) {
		err := ValidationError{
			Field:   "test.field",
			Message: "test message",
		}
		assert.Equal(t, "test.field: test message", err.Error())
	})
}
