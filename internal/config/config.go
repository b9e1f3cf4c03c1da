// config - источник загрузки конфигурации для signal-dashboard.
//
// Источники (по убыванию приоритета):
//  1. явный путь --config;
//  2. CONFIG_PATH;
//  3. ./local.yaml;
//  4. только ENV (cleanenv).
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	Backend   BackendConfig   `yaml:"backend"`
	Session   SessionConfig   `yaml:"session"`
	Routes    RoutesConfig    `yaml:"routes"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// TimeoutConfig — таймауты входящих запросов и исходящего HTTP-клиента.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"15s"`
	Client  time.Duration `yaml:"client"  env:"CLIENT_TIMEOUT"  env-default:"30s"`
}

// HTTPConfig — локальный BFF-сервер дашборда.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"127.0.0.1"`
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"50090"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

// BackendConfig — адреса удалённых сервисов.
type BackendConfig struct {
	IdentityURL  string `yaml:"identity_url"  env:"BACKEND_IDENTITY_URL"  env-default:"http://127.0.0.1:8000"`
	AnalyticsURL string `yaml:"analytics_url" env:"BACKEND_ANALYTICS_URL" env-default:"http://127.0.0.1:8000"`
	UserAgent    string `yaml:"user_agent"    env:"BACKEND_USER_AGENT"    env-default:"signal-dashboard"`
}

// SessionConfig — параметры менеджера сессии.
type SessionConfig struct {
	// ExpiryBuffer — запас до истечения access-токена, внутри которого
	// токен считается истекающим и требует обновления.
	ExpiryBuffer   time.Duration `yaml:"expiry_buffer"   env:"SESSION_EXPIRY_BUFFER"   env-default:"60s"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout" env:"SESSION_REFRESH_TIMEOUT" env-default:"15s"`
	CSRFCookie     string        `yaml:"csrf_cookie"     env:"SESSION_CSRF_COOKIE"     env-default:"csrf_token"`
	CSRFHeader     string        `yaml:"csrf_header"     env:"SESSION_CSRF_HEADER"     env-default:"X-CSRF-Token"`
	// KeepOnUnavailable — не завершать сессию, если refresh упал на транспорте
	// или 5xx (а не явным отказом). По умолчанию сессия завершается.
	KeepOnUnavailable bool `yaml:"keep_on_unavailable" env:"SESSION_KEEP_ON_UNAVAILABLE" env-default:"false"`
}

// RoutesConfig — публичная точка входа, стартовая защищённая страница
// и список публичных путей для RouteGuard.
type RoutesConfig struct {
	Entry   string   `yaml:"entry"   env:"ROUTES_ENTRY"   env-default:"/login"`
	Landing string   `yaml:"landing" env:"ROUTES_LANDING" env-default:"/dashboard"`
	Public  []string `yaml:"public"  env:"ROUTES_PUBLIC"  env-default:"/,/login,/signup"`
}

// TelemetryConfig — экспорт трейсов по OTLP/gRPC. Пустой endpoint отключает экспорт.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure     bool   `yaml:"insecure"      env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"false"`
	ServiceName  string `yaml:"service_name"  env:"OTEL_SERVICE_NAME"           env-default:"signal-dashboard"`
}

// MustLoad — паника при ошибке загрузки.
func MustLoad(path string) *Config {
	cfg, err := Load(path)

	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return validate(&cfg)
	}

	// 1) --config
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml
	if _, err := os.Stat("local.yaml"); err == nil {
		if err := cleanenv.ReadConfig("local.yaml", &cfg); err != nil {
			return nil, fmt.Errorf("failed to read local.yaml: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return validate(&cfg)
	}

	// 4) только ENV
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return validate(&cfg)
}

// validate отсекает значения, при которых менеджер сессии не сможет работать.
func validate(cfg *Config) (*Config, error) {
	if cfg.Session.ExpiryBuffer < 0 {
		return nil, fmt.Errorf("session.expiry_buffer must be >= 0, got %s", cfg.Session.ExpiryBuffer)
	}

	if cfg.Session.CSRFCookie == "" || cfg.Session.CSRFHeader == "" {
		return nil, fmt.Errorf("session.csrf_cookie and session.csrf_header must be set")
	}

	if cfg.Routes.Entry == cfg.Routes.Landing {
		return nil, fmt.Errorf("routes.entry and routes.landing must differ, both are %q", cfg.Routes.Entry)
	}

	return cfg, nil
}
