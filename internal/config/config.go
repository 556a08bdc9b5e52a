package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/queuebot/internal/leaderboard"
	"github.com/DoyleJ11/queuebot/internal/notify"
	"github.com/DoyleJ11/queuebot/internal/queue"
)

var ErrInvalid = errors.New("invalid config")

type Webhook struct {
	ID    string `yaml:"id"`
	Token string `yaml:"token"`
}

type Lobby struct {
	Channel string `yaml:"channel"`
	Name    string `yaml:"name"`
	// Capacity is the total number of players in a match.
	Capacity int      `yaml:"capacity"`
	Webhook  *Webhook `yaml:"webhook"`
}

type Roles struct {
	Ranked string `yaml:"ranked"`
	Admin  string `yaml:"admin"`
	Banned string `yaml:"banned"`
}

type Rank struct {
	ID    string  `yaml:"id"`
	Name  string  `yaml:"name"`
	Limit float64 `yaml:"limit"`
}

// Timeout values are minutes.
type Timeout struct {
	Default int `yaml:"default"`
	Maximum int `yaml:"maximum"`
	Warn    int `yaml:"warn"`
}

type Rating struct {
	Mu    float64 `yaml:"mu"`
	Sigma float64 `yaml:"sigma"`
	Tau   float64 `yaml:"tau"`
}

type Leaderboard struct {
	PageLen int `yaml:"page_len"`
}

// File is the community layout read from YAML.
type File struct {
	Prefix      string      `yaml:"prefix"`
	Guild       string      `yaml:"guild"`
	Lobbies     []Lobby     `yaml:"lobbies"`
	Roles       Roles       `yaml:"roles"`
	Ranks       []Rank      `yaml:"ranks"`
	Timeout     Timeout     `yaml:"timeout"`
	Bridge      string      `yaml:"bridge"`
	Rating      Rating      `yaml:"rating"`
	Leaderboard Leaderboard `yaml:"leaderboard"`
	Game        string      `yaml:"game"`
}

// Config is the full process configuration: secrets and addresses from the
// environment plus the YAML layout.
type Config struct {
	File

	DiscordToken string
	DatabaseURL  string
	HTTPAddr     string
	Path         string
	Debug        bool
}

// Load reads an optional .env file, the environment and the YAML file named
// by QUEUEBOT_CONFIG.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DiscordToken: os.Getenv("DISCORD_TOKEN"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		Path:         getenv("QUEUEBOT_CONFIG", "config.yaml"),
		Debug:        os.Getenv("QUEUEBOT_DEBUG") == "1",
	}
	raw, err := os.ReadFile(cfg.Path)
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", cfg.Path, err)
	}
	f, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", cfg.Path, err)
	}
	cfg.File = f
	return cfg, nil
}

// Parse decodes a YAML layout, fills defaults and validates it.
func Parse(raw []byte) (File, error) {
	f := File{
		Prefix:      "!",
		Timeout:     Timeout{Default: 60, Maximum: 120, Warn: 5},
		Rating:      Rating{Mu: 1500, Sigma: 500, Tau: 5},
		Leaderboard: Leaderboard{PageLen: 15},
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate reports every problem in the layout at once.
func (f File) Validate() error {
	var errs error
	invalid := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if f.Prefix == "" {
		invalid("prefix is empty")
	}
	if len(f.Lobbies) == 0 {
		invalid("no lobbies")
	}
	seen := make(map[string]bool, len(f.Lobbies))
	for _, l := range f.Lobbies {
		switch {
		case l.Channel == "":
			invalid("lobby %q has no channel", l.Name)
		case seen[l.Channel]:
			invalid("channel %s is used by more than one lobby", l.Channel)
		}
		seen[l.Channel] = true
		if err := queue.ValidateCapacity(l.Capacity); err != nil {
			invalid("lobby %q: %v", l.Name, err)
		}
	}
	if f.Timeout.Default <= 0 {
		invalid("default timeout must be positive")
	}
	if f.Timeout.Maximum < f.Timeout.Default {
		invalid("maximum timeout %d is below the default %d", f.Timeout.Maximum, f.Timeout.Default)
	}
	if f.Timeout.Warn < 0 || f.Timeout.Warn >= f.Timeout.Default {
		invalid("warn %d must be below the default timeout %d", f.Timeout.Warn, f.Timeout.Default)
	}
	if f.Rating.Sigma <= 0 {
		invalid("rating sigma must be positive")
	}
	if f.Leaderboard.PageLen <= 0 {
		invalid("leaderboard page_len must be positive")
	}
	return errs
}

func (t Timeout) DefaultDuration() time.Duration { return minutes(t.Default) }
func (t Timeout) MaximumDuration() time.Duration { return minutes(t.Maximum) }
func (t Timeout) WarnDuration() time.Duration    { return minutes(t.Warn) }

func (f File) Tiers() leaderboard.Tiers {
	tiers := make([]leaderboard.Tier, len(f.Ranks))
	for i, r := range f.Ranks {
		tiers[i] = leaderboard.Tier{Name: r.Name, RoleID: r.ID, Limit: r.Limit}
	}
	return leaderboard.NewTiers(tiers...)
}

// Webhooks maps lobby channels to their leaderboard webhook.
func (f File) Webhooks() map[string]notify.Webhook {
	out := make(map[string]notify.Webhook)
	for _, l := range f.Lobbies {
		if l.Webhook != nil && l.Webhook.ID != "" {
			out[l.Channel] = notify.Webhook{ID: l.Webhook.ID, Token: l.Webhook.Token}
		}
	}
	return out
}

func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
