package config

import (
	"slices"
	"time"
)

// BotConfig defines the Telegram side of the bot.
type BotConfig struct {
	// Token is the Telegram Bot API token obtained from @BotFather.
	Token string `json:"token" yaml:"token" mapstructure:"token"`

	// ParseMode is the parse mode for outgoing text. Defaults to HTML.
	ParseMode string `json:"parse_mode" yaml:"parse_mode" mapstructure:"parse_mode"`

	// Commands maps bot commands to the flows they start.
	Commands []CmdConfig `json:"commands" yaml:"commands" mapstructure:"commands"`

	// AllowFrom restricts the bot to these user ids. Empty allows everyone.
	AllowFrom []int64 `json:"allow_from" yaml:"allow_from" mapstructure:"allow_from"`

	// DefaultTTL bounds how long a single flow run may live.
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl" mapstructure:"default_ttl"`

	// Debug enables debug logging.
	Debug bool `json:"debug" yaml:"debug" mapstructure:"debug"`

	// DeleteCommandsOnExit removes the command menu when the bot stops.
	DeleteCommandsOnExit bool `json:"delete_commands_on_exit" yaml:"delete_commands_on_exit" mapstructure:"delete_commands_on_exit"`

	// RegisterCommands registers Commands with Telegram on start. Defaults to true if nil.
	RegisterCommands *bool `json:"register_commands" yaml:"register_commands" mapstructure:"register_commands"`
}

// CmdConfig binds a command to a flow.
type CmdConfig struct {
	// Command is the command name without the leading slash.
	Command string `json:"command" yaml:"command" mapstructure:"command"`

	// Description is shown in Telegram's command menu.
	Description string `json:"description" yaml:"description" mapstructure:"description"`

	// Flow is the name of the flow the command starts.
	Flow string `json:"flow" yaml:"flow" mapstructure:"flow"`

	// Start overrides the flow's start state.
	Start string `json:"start" yaml:"start" mapstructure:"start"`
}

// NewDefaultBotConfig creates a BotConfig with a 30 minute run TTL.
func NewDefaultBotConfig() *BotConfig {
	return &BotConfig{
		ParseMode:  "HTML",
		DefaultTTL: 30 * time.Minute,
	}
}

// Validate returns ErrEmptyToken if the token is not set.
func (c *BotConfig) Validate() error {
	if c.Token == "" {
		return ErrEmptyToken
	}
	for _, cmd := range c.Commands {
		if cmd.Command == "" || cmd.Flow == "" {
			return ErrInvalidCommand
		}
	}
	return nil
}

// ShouldRegisterCommands reports whether commands are registered on start.
func (c *BotConfig) ShouldRegisterCommands() bool {
	return c.RegisterCommands == nil || *c.RegisterCommands
}

// Allowed reports whether userID may use the bot.
func (c *BotConfig) Allowed(userID int64) bool {
	return len(c.AllowFrom) == 0 || slices.Contains(c.AllowFrom, userID)
}
