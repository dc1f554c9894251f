package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`

	// CORSOrigins is a comma-separated allow-list; "*" allows any origin.
	CORSOrigins string `mapstructure:"cors_origins"`

	// RemoteControlToken, when set, is required at handshake time.
	RemoteControlToken string `mapstructure:"remote_control_token"`

	// RoomAutoCreateOnJoin set to "0" disables auto-creating UUID-shaped
	// rooms on joined-room.
	RoomAutoCreateOnJoin string `mapstructure:"room_auto_create_on_join"`

	// AllowSameMachineRemote set to "1" disables the same-network
	// self-host block.
	AllowSameMachineRemote string `mapstructure:"allow_same_machine_remote"`

	// RemoteDebug set to "1" logs per-session traffic counters every 2s.
	RemoteDebug string `mapstructure:"remote_debug"`

	// HostAppZip is the local path streamed by the download endpoint.
	HostAppZip string `mapstructure:"host_app_zip"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 5000)
	v.SetDefault("cors_origins", "http://localhost:5173,http://127.0.0.1:5173")
	v.SetDefault("remote_control_token", "")
	v.SetDefault("room_auto_create_on_join", "")
	v.SetDefault("allow_same_machine_remote", "")
	v.SetDefault("remote_debug", "")
	v.SetDefault("host_app_zip", "")

	for _, key := range []string{
		"mode", "port", "cors_origins", "remote_control_token",
		"room_auto_create_on_join", "allow_same_machine_remote",
		"remote_debug", "host_app_zip",
	} {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Origins splits the allow-list into its entries.
func (c *Config) Origins() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AutoCreateRooms reports whether joined-room may create UUID-shaped rooms.
func (c *Config) AutoCreateRooms() bool {
	return c.RoomAutoCreateOnJoin != "0"
}

func (c *Config) SameMachineAllowed() bool {
	return c.AllowSameMachineRemote == "1"
}

func (c *Config) DebugCounters() bool {
	return c.RemoteDebug == "1"
}
