// Package config provides configuration helpers for go-host commands.
package config

import (
	"fmt"
	"os"
)

// Default server configuration.
const (
	DefaultPort           = "5000"
	DefaultAccessPassword = "letmein"
	DefaultAnamAPIURL     = "https://api.anam.ai"
	DefaultServerURL      = "http://localhost:5000"
)

// AnamAPIKey returns the upstream Anam API key from ANAM_API_KEY.
// Exits the process if not set: the token proxy cannot run without it.
func AnamAPIKey() string {
	key := os.Getenv("ANAM_API_KEY")
	if key == "" {
		fmt.Fprintln(os.Stderr, "Error: ANAM_API_KEY environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: ANAM_API_KEY=sk-... go run ./cmd/hostd")
		os.Exit(1)
	}
	return key
}

// AnamAPIURL returns the Anam API base URL from ANAM_API_URL or default.
func AnamAPIURL() string {
	if url := os.Getenv("ANAM_API_URL"); url != "" {
		return url
	}
	return DefaultAnamAPIURL
}

// AccessPassword returns the shared access password from ACCESS_PASSWORD.
// Falls back to a fixed default when unset; callers should warn loudly
// when the fallback is in use.
func AccessPassword() (password string, isDefault bool) {
	if pass := os.Getenv("ACCESS_PASSWORD"); pass != "" {
		return pass, false
	}
	return DefaultAccessPassword, true
}

// Port returns the listening port from PORT or default.
func Port() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return DefaultPort
}

// ServerURL returns the hostd base URL for the kiosk from HOSTD_URL or default.
func ServerURL() string {
	if url := os.Getenv("HOSTD_URL"); url != "" {
		return url
	}
	return DefaultServerURL
}

// LogLevel returns the log level from LOG_LEVEL or "info".
func LogLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

// CameraDevice returns the camera device id from CAMERA_DEVICE or 0.
func CameraDevice() string {
	if dev := os.Getenv("CAMERA_DEVICE"); dev != "" {
		return dev
	}
	return "0"
}
