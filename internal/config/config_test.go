package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"BASE_URL", "SOURCE_NAME", "USER_AGENT",
	"MAX_PAGES", "REQUEST_TIMEOUT", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW",
	"MAX_RETRIES", "RETRY_DELAY", "DATABASE_PATH", "DELETE_OLD_CARS_DAYS",
	"MAIN_LOOP_INTERVAL", "CHECK_ROBOTS_TXT", "MAX_CYCLE_FAILURES",
	"TELEGRAM_API_KEY", "TELEGRAM_CHAT_ID", "LOG_LEVEL",
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			want: &Config{
				BaseURL:           defaultBaseURL,
				SourceName:        "autode",
				UserAgent:         defaultUserAgent,
				MaxPages:          5,
				RequestTimeout:    30 * time.Second,
				RateLimitRequests: 10,
				RateLimitWindow:   60 * time.Second,
				MaxRetries:        3,
				RetryDelay:        2 * time.Second,
				DatabasePath:      "./data/carwatch.db",
				DeleteOlderThan:   7 * 24 * time.Hour,
				MainLoopInterval:  300 * time.Second,
				CheckRobotsTxt:    true,
				MaxCycleFailures:  3,
				LogLevel:          "info",
			},
		},
		{
			name: "all values set",
			env: map[string]string{
				"BASE_URL":             "https://cars.example.com/search?p=%d",
				"SOURCE_NAME":          "example",
				"USER_AGENT":           "test-agent",
				"MAX_PAGES":            "2",
				"REQUEST_TIMEOUT":      "10",
				"RATE_LIMIT_REQUESTS":  "5",
				"RATE_LIMIT_WINDOW":    "30",
				"MAX_RETRIES":          "4",
				"RETRY_DELAY":          "1",
				"DATABASE_PATH":        "/tmp/cars.db",
				"DELETE_OLD_CARS_DAYS": "14",
				"MAIN_LOOP_INTERVAL":   "60",
				"CHECK_ROBOTS_TXT":     "false",
				"MAX_CYCLE_FAILURES":   "5",
				"TELEGRAM_API_KEY":     "tok",
				"TELEGRAM_CHAT_ID":     "12345",
				"LOG_LEVEL":            "debug",
			},
			want: &Config{
				BaseURL:           "https://cars.example.com/search?p=%d",
				SourceName:        "example",
				UserAgent:         "test-agent",
				MaxPages:          2,
				RequestTimeout:    10 * time.Second,
				RateLimitRequests: 5,
				RateLimitWindow:   30 * time.Second,
				MaxRetries:        4,
				RetryDelay:        time.Second,
				DatabasePath:      "/tmp/cars.db",
				DeleteOlderThan:   14 * 24 * time.Hour,
				MainLoopInterval:  60 * time.Second,
				CheckRobotsTxt:    false,
				MaxCycleFailures:  5,
				TelegramAPIKey:    "tok",
				TelegramChatID:    12345,
				LogLevel:          "debug",
			},
		},
		{
			name:    "non-numeric pages",
			env:     map[string]string{"MAX_PAGES": "many"},
			wantErr: true,
		},
		{
			name:    "zero pages",
			env:     map[string]string{"MAX_PAGES": "0"},
			wantErr: true,
		},
		{
			name:    "timeout too short",
			env:     map[string]string{"REQUEST_TIMEOUT": "2"},
			wantErr: true,
		},
		{
			name:    "negative rate window",
			env:     map[string]string{"RATE_LIMIT_WINDOW": "-10"},
			wantErr: true,
		},
		{
			name:    "invalid chat id",
			env:     map[string]string{"TELEGRAM_CHAT_ID": "not-a-number"},
			wantErr: true,
		},
		{
			name:    "unparsable robots flag",
			env:     map[string]string{"CHECK_ROBOTS_TXT": "yes"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envKeys {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCheckRobotsTxtForms(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"false", false},
		{"FALSE", false},
		{"0", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			for _, key := range envKeys {
				t.Setenv(key, "")
			}
			t.Setenv("CHECK_ROBOTS_TXT", tt.raw)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.CheckRobotsTxt != tt.want {
				t.Errorf("CheckRobotsTxt = %v for %q, want %v", cfg.CheckRobotsTxt, tt.raw, tt.want)
			}
		})
	}
}

func TestHasTelegram(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"both set", Config{TelegramAPIKey: "tok", TelegramChatID: 1}, true},
		{"missing key", Config{TelegramChatID: 1}, false},
		{"missing chat", Config{TelegramAPIKey: "tok"}, false},
		{"neither", Config{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.HasTelegram(); got != tt.want {
				t.Errorf("HasTelegram() = %v, want %v", got, tt.want)
			}
		})
	}
}
