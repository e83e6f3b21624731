// Package anam provides a client for the Anam avatar platform API.
package anam

import "errors"

// ErrEmptyPersona is returned when a token exchange is attempted without
// a persona configuration.
var ErrEmptyPersona = errors.New("anam: persona config required")

// PersonaConfig describes the avatar persona and stream quality settings
// sent to the token endpoint and the streaming engine.
type PersonaConfig struct {
	PersonaID           string `json:"personaId"`
	VoiceID             string `json:"voiceId"`
	SystemPrompt        string `json:"systemPrompt"`
	Quality             string `json:"quality"`
	VideoQuality        string `json:"videoQuality"`
	VideoBitrate        int    `json:"videoBitrate"`
	AudioBitrate        int    `json:"audioBitrate"`
	PreferredVideoCodec string `json:"preferredVideoCodec"`
	AdaptiveStreaming   bool   `json:"adaptiveStreaming"`
}

// DefaultPersona returns the stock host persona with maximum quality
// streaming settings.
func DefaultPersona() PersonaConfig {
	return PersonaConfig{
		PersonaID:           "fff175f8-0170-453b-be4b-360730a0f328",
		VoiceID:             "5d67e1e3-8375-4185-ac84-b05464255d9c",
		SystemPrompt:        "You are helpful assistant.",
		Quality:             "high",
		VideoQuality:        "hd",
		VideoBitrate:        5_000_000, // 5 Mbps
		AudioBitrate:        192_000,   // 192 kbps
		PreferredVideoCodec: "h264",
		AdaptiveStreaming:   false,
	}
}

// IsZero reports whether the persona carries no configuration at all.
func (p PersonaConfig) IsZero() bool {
	return p == PersonaConfig{}
}

// Validate checks that the persona is usable for a token exchange.
func (p PersonaConfig) Validate() error {
	if p.IsZero() {
		return ErrEmptyPersona
	}
	return nil
}
