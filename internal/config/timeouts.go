package config

import (
	"os"
	"strconv"
	"time"
)

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - PROXMATE_TASK_TIMEOUT (default: 60s)
//   - PROXMATE_TASK_CHECK_INTERVAL (default: 2s)
//   - PROXMATE_IMGCOPY_TIMEOUT (default: 120s)
//   - PROXMATE_SSH_TIMEOUT (default: 60s)
//   - PROXMATE_SSH_CHECK_INTERVAL (default: 5s)
//   - PROXMATE_AGENT_RETRY_DELAY (default: 5s)
//   - PROXMATE_AGENT_RETRY_ATTEMPTS (default: 3)
//   - PROXMATE_ALLOCATION_JITTER_MAX (default: 4s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Task:                parseDuration("PROXMATE_TASK_TIMEOUT", 60*time.Second),
		TaskCheckInterval:   parseDuration("PROXMATE_TASK_CHECK_INTERVAL", 2*time.Second),
		ImgCopy:             parseDuration("PROXMATE_IMGCOPY_TIMEOUT", 120*time.Second),
		SSH:                 parseDuration("PROXMATE_SSH_TIMEOUT", 60*time.Second),
		SSHCheckInterval:    parseDuration("PROXMATE_SSH_CHECK_INTERVAL", 5*time.Second),
		AgentRetryDelay:     parseDuration("PROXMATE_AGENT_RETRY_DELAY", 5*time.Second),
		AgentRetryAttempts:  parseInt("PROXMATE_AGENT_RETRY_ATTEMPTS", 3),
		AllocationJitterMax: parseDuration("PROXMATE_ALLOCATION_JITTER_MAX", 4*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
