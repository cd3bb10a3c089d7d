package config

import "time"

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Escalation EscalationConfig
	Business   BusinessConfig
	Matching   MatchingConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type EscalationConfig struct {
	// RequestTimeout is how long a help request stays PENDING before it
	// expires to UNRESOLVED.
	RequestTimeout time.Duration
	// SweepInterval is how often the background sweeper checks for
	// reminders and timeouts.
	SweepInterval time.Duration
	// ReminderLead is how far ahead of the deadline the one-shot
	// supervisor reminder fires.
	ReminderLead time.Duration
}

type BusinessConfig struct {
	Name    string
	Hours   string
	Phone   string
	Address string
}

type MatchingConfig struct {
	// StopWords overrides the default stop-word set when non-empty.
	StopWords []string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Escalation: EscalationConfig{
			RequestTimeout: 30 * time.Minute,
			SweepInterval:  30 * time.Second,
			ReminderLead:   5 * time.Minute,
		},
		Business: BusinessConfig{
			Name:    "Bella Vista Salon & Spa",
			Hours:   "Monday-Friday: 9AM-7PM, Saturday: 9AM-5PM, Sunday: Closed",
			Phone:   "(555) 123-4567",
			Address: "123 Main Street, Downtown",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/frontdesk/config.json, then applies FRONTDESK_*
// environment variable overrides on top.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
