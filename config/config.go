package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	pkgconfig "shipmentportal/pkg/config"
)

// NotifierConfig 通知 worker 配置，收件人为逗号分隔的地址列表
type NotifierConfig struct {
	Recipients           string        `yaml:"recipients"`
	EscalationRecipients string        `yaml:"escalation_recipients"`
	PollSchedule         string        `yaml:"poll_schedule"`
	SummarySchedule      string        `yaml:"summary_schedule"`
	Window               time.Duration `yaml:"window"`
	MaxAttempts          int           `yaml:"max_attempts"`
	BackoffBase          time.Duration `yaml:"backoff_base"`
	BackoffMax           time.Duration `yaml:"backoff_max"`
	JobTimeout           time.Duration `yaml:"job_timeout"`
	SummaryLimit         int           `yaml:"summary_limit"`
	PortalURL            string        `yaml:"portal_url"`
	DedupeExceptions     bool          `yaml:"dedupe_exceptions"`
	HealthPort           string        `yaml:"health_port"`
}

// RecipientList 拆分基础收件人
func (c NotifierConfig) RecipientList() []string {
	return pkgconfig.SplitList(c.Recipients)
}

// EscalationList 拆分升级收件人
func (c NotifierConfig) EscalationList() []string {
	return pkgconfig.SplitList(c.EscalationRecipients)
}

// OutboxConfig Outbox 投递配置
type OutboxConfig struct {
	Interval   time.Duration `yaml:"interval"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
}

type Config struct {
	DB       pkgconfig.DBConfig     `yaml:"db"`
	MQ       pkgconfig.MQConfig     `yaml:"mq"`
	Redis    pkgconfig.RedisConfig  `yaml:"redis"`
	JWT      pkgconfig.JWTConfig    `yaml:"jwt"`
	Server   pkgconfig.ServerConfig `yaml:"server"`
	SMTP     pkgconfig.SMTPConfig   `yaml:"smtp"`
	Upload   pkgconfig.UploadConfig `yaml:"upload"`
	Log      pkgconfig.LogConfig    `yaml:"log"`
	Notifier NotifierConfig         `yaml:"notifier"`
	Outbox   OutboxConfig           `yaml:"outbox"`
}

// Load 使用统一配置中心加载配置，环境变量优先级最高
func Load() (*Config, error) {
	return LoadFrom(pkgconfig.GetConfigEnv(), pkgconfig.GetConfigDir())
}

func LoadFrom(env, dir string) (*Config, error) {
	raw, err := pkgconfig.LoadConfig(env, dir)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := pkgconfig.Decode(raw, &cfg); err != nil {
		return nil, err
	}

	pkgconfig.OverrideDBFromEnv(&cfg.DB)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	pkgconfig.OverrideSMTPFromEnv(&cfg.SMTP)
	pkgconfig.OverrideUploadFromEnv(&cfg.Upload)
	overrideNotifierFromEnv(&cfg.Notifier)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overrideNotifierFromEnv(cfg *NotifierConfig) {
	if v := os.Getenv("VHC_EMAILS"); v != "" {
		cfg.Recipients = v
	}
	if v := os.Getenv("ESCALATION_EMAILS"); v != "" {
		cfg.EscalationRecipients = v
	}
	if v := os.Getenv("PORTAL_URL"); v != "" {
		cfg.PortalURL = v
	}
}

// Validate 检查启动必需的配置项
func (c *Config) Validate() error {
	var missing []string
	if c.DB.DSN == "" && c.DB.Host == "" {
		missing = append(missing, "db.dsn or db.host")
	}
	if c.JWT.Secret == "" {
		missing = append(missing, "jwt.secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}
