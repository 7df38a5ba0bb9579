package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("STUDYBOT_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("STUDYBOT_ADMIN_ID", "987654321")
	t.Setenv("STUDYBOT_REDIS_ADDR", "localhost:6379")
	t.Setenv("STUDYBOT_REDIS_DB", "2")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg := Load()

	if cfg.AdminID != 987654321 {
		t.Errorf("AdminID = %d, want 987654321", cfg.AdminID)
	}
	if cfg.RedisDB != 2 {
		t.Errorf("RedisDB = %d, want 2", cfg.RedisDB)
	}
	if cfg.MinScore != 0.3 {
		t.Errorf("MinScore = %v, want 0.3", cfg.MinScore)
	}
	if cfg.DefaultMode != ModeFree {
		t.Errorf("DefaultMode = %q, want %q", cfg.DefaultMode, ModeFree)
	}
	if cfg.UpdatesMode != UpdatesPolling {
		t.Errorf("UpdatesMode = %q, want %q", cfg.UpdatesMode, UpdatesPolling)
	}
	if cfg.CashfreeBaseURL != "https://sandbox.cashfree.com" {
		t.Errorf("CashfreeBaseURL = %q", cfg.CashfreeBaseURL)
	}
	if cfg.PaymentsEnabled() {
		t.Error("PaymentsEnabled() should be false without credentials")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("STUDYBOT_BOT_USERNAME", "@Material_eduhubkmrbot")
	t.Setenv("STUDYBOT_SEARCH_MODE", "PAID")
	t.Setenv("STUDYBOT_MIN_SCORE", "0.4")
	t.Setenv("STUDYBOT_CASHFREE_ENV", "production")
	t.Setenv("STUDYBOT_CASHFREE_CLIENT_ID", "id")
	t.Setenv("STUDYBOT_CASHFREE_CLIENT_SECRET", "secret")
	t.Setenv("STUDYBOT_PUBLIC_BASE_URL", "https://study.example.com/")

	cfg := Load()

	if cfg.BotUsername != "Material_eduhubkmrbot" {
		t.Errorf("BotUsername = %q, want stripped @", cfg.BotUsername)
	}
	if cfg.DefaultMode != ModePaid {
		t.Errorf("DefaultMode = %q, want %q", cfg.DefaultMode, ModePaid)
	}
	if cfg.MinScore != 0.4 {
		t.Errorf("MinScore = %v, want 0.4", cfg.MinScore)
	}
	if cfg.CashfreeBaseURL != "https://api.cashfree.com" {
		t.Errorf("CashfreeBaseURL = %q", cfg.CashfreeBaseURL)
	}
	if cfg.PublicBaseURL != "https://study.example.com" {
		t.Errorf("PublicBaseURL = %q, want trailing slash trimmed", cfg.PublicBaseURL)
	}
	if !cfg.PaymentsEnabled() {
		t.Error("PaymentsEnabled() should be true")
	}
}

func TestLoadPanics(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "min score out of range", env: map[string]string{"STUDYBOT_MIN_SCORE": "1.5"}},
		{name: "webhook without secret", env: map[string]string{"STUDYBOT_UPDATES_MODE": "webhook"}},
		{name: "password required but empty", env: map[string]string{"STUDYBOT_REDIS_PASSWORD_REQUIRED": "true"}},
		{name: "admin id not a number", env: map[string]string{"STUDYBOT_ADMIN_ID": "boss"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			defer func() {
				if r := recover(); r == nil {
					t.Error("Load() should have panicked")
				}
			}()
			Load()
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := &Config{TelegramToken: "tok", CashfreeClientSecret: "sec", RedisAddr: "localhost:6379"}
	r := cfg.Redacted()
	if r.TelegramToken != "***REDACTED***" || r.CashfreeClientSecret != "***REDACTED***" {
		t.Errorf("secrets not redacted: %+v", r)
	}
	if r.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr should be untouched, got %q", r.RedisAddr)
	}
	if cfg.TelegramToken != "tok" {
		t.Error("Redacted() must not mutate the receiver")
	}
}

func TestRequireEnv(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     string
		wantPanic bool
	}{
		{name: "variable set", key: "TEST_VAR", value: "test_value"},
		{name: "variable not set", key: "TEST_VAR_MISSING", wantPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv(tt.key, tt.value)
			}
			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("requireEnv() should have panicked")
					}
				}()
			}

			result := requireEnv(tt.key)
			if !tt.wantPanic && result != tt.value {
				t.Errorf("requireEnv() = %v, want %v", result, tt.value)
			}
		})
	}
}

func TestOneOf(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "allowed", value: "webhook", want: UpdatesWebhook},
		{name: "case insensitive", value: " Webhook ", want: UpdatesWebhook},
		{name: "unknown falls back", value: "carrier-pigeon", want: UpdatesPolling},
		{name: "missing falls back", value: "", want: UpdatesPolling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ONE_OF", tt.value)
			got := oneOf("TEST_ONE_OF", UpdatesPolling, UpdatesPolling, UpdatesWebhook)
			if got != tt.want {
				t.Errorf("oneOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{name: "valid duration", value: "5s", def: time.Second, expected: 5 * time.Second},
		{name: "invalid duration uses default", value: "invalid", def: 10 * time.Second, expected: 10 * time.Second},
		{name: "missing variable uses default", value: "", def: 15 * time.Second, expected: 15 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := mustDuration("TEST_DURATION", tt.def); got != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(` "10.0.0.0/8", 127.0.0.1 ,, '::1' `)
	want := []string{"10.0.0.0/8", "127.0.0.1", "::1"}
	if len(got) != len(want) {
		t.Fatalf("splitAndTrim() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitAndTrim()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
