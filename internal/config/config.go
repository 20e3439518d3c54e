package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Protocols is the closed set of check protocols hostpulse knows how to
// probe. Probe dispatch and per-protocol timeouts key off these names.
var Protocols = []string{"icmp", "ssh", "snmp", "ntp", "dns", "netflow"}

type Config struct {
	// Server
	Addr string

	// Storage
	DBPath           string
	StorageEnabled   bool
	RetentionSeconds int

	// Sampler
	SampleIntervalSeconds int
	HistoryPoints         int

	// Anomaly detection
	AnomalyWindowSeconds int
	AnomalyZThreshold    float64

	// Protocol checker
	CheckIntervalSeconds int
	CheckWorkers         int
	ProtocolTimeouts     map[string]time.Duration
	SystemDNSAddr        string // DNS server checked for the "system" target
	SystemNTPAddr        string // NTP server checked for the "system" target

	// Agent mode
	CollectorURL string
	AgentHostID  string
}

func Load() *Config {
	timeouts := map[string]time.Duration{
		"icmp":    getEnvDuration("PULSE_TIMEOUT_ICMP", 1*time.Second),
		"ssh":     getEnvDuration("PULSE_TIMEOUT_SSH", 2*time.Second),
		"snmp":    getEnvDuration("PULSE_TIMEOUT_SNMP", 1500*time.Millisecond),
		"ntp":     getEnvDuration("PULSE_TIMEOUT_NTP", 1200*time.Millisecond),
		"dns":     getEnvDuration("PULSE_TIMEOUT_DNS", 1500*time.Millisecond),
		"netflow": getEnvDuration("PULSE_TIMEOUT_NETFLOW", 1*time.Second),
	}

	return &Config{
		Addr:                  getEnv("PULSE_ADDR", ":8098"),
		DBPath:                getEnv("PULSE_DB_PATH", "./data/hostpulse.db"),
		StorageEnabled:        getEnvBool("PULSE_STORAGE_ENABLED", true),
		RetentionSeconds:      getEnvInt("PULSE_RETENTION_SECONDS", 86400),
		SampleIntervalSeconds: getEnvInt("PULSE_SAMPLE_INTERVAL", 5),
		HistoryPoints:         getEnvInt("PULSE_HISTORY_POINTS", 120),
		AnomalyWindowSeconds:  getEnvInt("PULSE_ANOMALY_WINDOW", 60),
		AnomalyZThreshold:     getEnvFloat("PULSE_ANOMALY_Z", 2.0),
		CheckIntervalSeconds:  getEnvInt("PULSE_CHECK_INTERVAL", 15),
		CheckWorkers:          getEnvInt("PULSE_CHECK_WORKERS", 16),
		ProtocolTimeouts:      timeouts,
		SystemDNSAddr:         getEnv("PULSE_SYSTEM_DNS", "1.1.1.1:53"),
		SystemNTPAddr:         getEnv("PULSE_SYSTEM_NTP", "pool.ntp.org:123"),
		CollectorURL:          getEnv("PULSE_COLLECTOR_URL", ""),
		AgentHostID:           getEnv("PULSE_AGENT_HOST_ID", ""),
	}
}

// Timeout returns the probe timeout for a protocol, with a safe floor for
// protocols that were never configured.
func (c *Config) Timeout(protocol string) time.Duration {
	if t, ok := c.ProtocolTimeouts[protocol]; ok && t > 0 {
		return t
	}
	return 2 * time.Second
}

func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalSeconds) * time.Second
}

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionSeconds) * time.Second
}

func (c *Config) AnomalyWindow() time.Duration {
	return time.Duration(c.AnomalyWindowSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
