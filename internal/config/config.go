package config

import (
	"fmt"
	"log"
	"time"
	_ "time/tzdata"

	"projecttracker/internal/model"
	"projecttracker/internal/reminder"
	"projecttracker/internal/stage"
	"projecttracker/pkg/config"
)

type TrackerConfig struct {
	Registry         string         `yaml:"registry"`
	ProgressRule     string         `yaml:"progress_rule"`
	CompletionPolicy string         `yaml:"completion_policy"`
	Milestones       map[string]int `yaml:"milestones"`
	CacheTTLSeconds  int            `yaml:"cache_ttl_seconds"`
}

type ReminderConfig struct {
	LeadDays      int               `yaml:"lead_days"`
	Schedule      string            `yaml:"schedule"`
	Recipients    map[string]string `yaml:"recipients"`
	SkipStages    []string          `yaml:"skip_stages"`
	DedupTTLHours int               `yaml:"dedup_ttl_hours"`
	RunOnStart    bool              `yaml:"run_on_start"`
}

type OTDRConfig struct {
	ResetSchedule string `yaml:"reset_schedule"`
	Timezone      string `yaml:"timezone"`
}

type MailQueueConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	BatchSize       int `yaml:"batch_size"`
}

type Config struct {
	Env       string              `yaml:"-"`
	Server    config.ServerConfig `yaml:"server"`
	DB        config.DBConfig     `yaml:"db"`
	MQ        config.MQConfig     `yaml:"mq"`
	Redis     config.RedisConfig  `yaml:"redis"`
	JWT       config.JWTConfig    `yaml:"jwt"`
	Admin     config.AdminConfig  `yaml:"admin"`
	Mail      config.MailConfig   `yaml:"mail"`
	Tracker   TrackerConfig       `yaml:"tracker"`
	Reminder  ReminderConfig      `yaml:"reminder"`
	OTDR      OTDRConfig          `yaml:"otdr"`
	MailQueue MailQueueConfig     `yaml:"mail_queue"`
}

// Load reads CONFIG_ENV / CONFIG_DIR and exits on a broken configuration.
func Load() *Config {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfg, err := LoadFrom(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func LoadFrom(env, configDir string) (*Config, error) {
	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		return nil, err
	}

	cfg := defaults()
	if err := config.Decode(cfgMap, cfg); err != nil {
		return nil, err
	}
	cfg.Env = env

	// Environment variables win over files.
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideAdminFromEnv(&cfg.Admin)
	config.OverrideMailFromEnv(&cfg.Mail)

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	if _, err := cfg.Engine(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: config.ServerConfig{Port: "8080"},
		MQ:     config.MQConfig{Exchange: "events"},
		JWT:    config.JWTConfig{TTLHours: 12},
		Mail:   config.MailConfig{Provider: "smtp", SMTPPort: 587, TimeoutSeconds: 15},
		Tracker: TrackerConfig{
			Registry:         "default",
			ProgressRule:     stage.RuleStageCount,
			CompletionPolicy: string(stage.HoldAtNinety),
			CacheTTLSeconds:  60,
		},
		Reminder: ReminderConfig{
			LeadDays:      5,
			Schedule:      "@every 1h",
			SkipStages:    []string{string(stage.Dispatch)},
			DedupTTLHours: 48,
			RunOnStart:    true,
		},
		OTDR: OTDRConfig{
			ResetSchedule: "0 0 1 4 *",
			Timezone:      "UTC",
		},
		MailQueue: MailQueueConfig{IntervalSeconds: 10, BatchSize: 20},
	}
}

// Location is the timezone used for "today" in scheduled jobs.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.OTDR.Timezone)
	if err != nil {
		return nil, fmt.Errorf("otdr.timezone: %w", err)
	}
	return loc, nil
}

// Engine builds the derivation engine selected by the tracker section.
func (c *Config) Engine() (*stage.Engine, error) {
	registry, err := stage.ByName(c.Tracker.Registry)
	if err != nil {
		return nil, err
	}
	rule, err := stage.NewRule(c.Tracker.ProgressRule, c.Tracker.Milestones)
	if err != nil {
		return nil, err
	}
	policy, err := stage.ParseCompletionPolicy(c.Tracker.CompletionPolicy)
	if err != nil {
		return nil, err
	}
	return stage.NewEngine(registry, stage.WithProgressRule(rule), stage.WithCompletionPolicy(policy)), nil
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Tracker.CacheTTLSeconds) * time.Second
}

func (c *Config) DedupTTL() time.Duration {
	return time.Duration(c.Reminder.DedupTTLHours) * time.Hour
}

// ReminderScanner converts the reminder section for the scanner.
func (c *Config) ReminderScanner(loc *time.Location) reminder.Config {
	recipients := make(map[model.StageID]string, len(c.Reminder.Recipients))
	for k, v := range c.Reminder.Recipients {
		recipients[model.StageID(k)] = v
	}
	skip := make([]model.StageID, 0, len(c.Reminder.SkipStages))
	for _, s := range c.Reminder.SkipStages {
		skip = append(skip, model.StageID(s))
	}
	return reminder.Config{
		LeadDays:   c.Reminder.LeadDays,
		Recipients: recipients,
		SkipStages: skip,
		Location:   loc,
	}
}

func (c *Config) MailQueueInterval() time.Duration {
	return time.Duration(c.MailQueue.IntervalSeconds) * time.Second
}
