package config

import "testing"

func validBase() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "medreminder"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Media: MediaConfig{URL: "https://media.local", APIKey: "key", APISecret: "secret", SIPTrunkID: "ST_1"},
		Agent: AgentConfig{Name: "med-reminder", JobPort: 8081},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_RequiresMediaPlatform(t *testing.T) {
	c := validBase()
	c.Media.SIPTrunkID = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing SIP_OUTBOUND_TRUNK_ID")
	}
}

func TestValidate_ProductionRequiresAuthSecret(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.DB.SSLMode = "require"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without AUTH_JWT_SECRET")
	}
	c.Auth.JWTSecret = "s"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
