package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// writeFile — утилита записи временного файла конфигурации.
func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o600))
	return p
}

// chdir — смена текущего рабочего каталога с авто-возвратом.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

// Полный корректный YAML под текущую структуру config.go.
const sampleYAML = `
env: "prod"
http:
  host: "0.0.0.0"
  port: "8080"
backend:
  identity_url: "https://id.example.com"
  analytics_url: "https://analytics.example.com"
  user_agent: "dash-test"
session:
  expiry_buffer: "90s"
  refresh_timeout: "5s"
  csrf_cookie: "xsrf"
  csrf_header: "X-XSRF-Token"
  keep_on_unavailable: true
routes:
  entry: "/signin"
  landing: "/home"
  public: ["/", "/signin"]
timeouts:
  service: "3s"
  client: "4s"
telemetry:
  otlp_endpoint: "otel:4317"
  insecure: true
  service_name: "dash"
`

// Минимальный YAML (всё остальное — через дефолты/ENV).
const minimalYAML = `
env: "stage"
`

// Некорректный YAML для проверки сообщений об ошибке.
const brokenYAML = `
env: [unclosed
`

func TestHTTPConfig_Addr(t *testing.T) {
	t.Parallel()
	cfg := HTTPConfig{Host: "127.0.0.1", Port: "8080"}
	require.Equal(t, "127.0.0.1:8080", cfg.Addr())
}

func TestLoad_WithExplicitPath_OK(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", sampleYAML)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	require.Equal(t, "8080", cfg.HTTP.Port)

	require.Equal(t, "https://id.example.com", cfg.Backend.IdentityURL)
	require.Equal(t, "https://analytics.example.com", cfg.Backend.AnalyticsURL)
	require.Equal(t, "dash-test", cfg.Backend.UserAgent)

	require.Equal(t, 90*time.Second, cfg.Session.ExpiryBuffer)
	require.Equal(t, 5*time.Second, cfg.Session.RefreshTimeout)
	require.Equal(t, "xsrf", cfg.Session.CSRFCookie)
	require.Equal(t, "X-XSRF-Token", cfg.Session.CSRFHeader)
	require.True(t, cfg.Session.KeepOnUnavailable)

	require.Equal(t, "/signin", cfg.Routes.Entry)
	require.Equal(t, "/home", cfg.Routes.Landing)
	require.Equal(t, []string{"/", "/signin"}, cfg.Routes.Public)

	require.Equal(t, 3*time.Second, cfg.Timeouts.Service)
	require.Equal(t, 4*time.Second, cfg.Timeouts.Client)

	require.Equal(t, "otel:4317", cfg.Telemetry.OTLPEndpoint)
	require.True(t, cfg.Telemetry.Insecure)
	require.Equal(t, "dash", cfg.Telemetry.ServiceName)
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "min.yaml", minimalYAML)

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, 60*time.Second, cfg.Session.ExpiryBuffer)
	require.Equal(t, 15*time.Second, cfg.Session.RefreshTimeout)
	require.Equal(t, "csrf_token", cfg.Session.CSRFCookie)
	require.Equal(t, "X-CSRF-Token", cfg.Session.CSRFHeader)
	require.False(t, cfg.Session.KeepOnUnavailable)
	require.Equal(t, "/login", cfg.Routes.Entry)
	require.Equal(t, "/dashboard", cfg.Routes.Landing)
	require.Equal(t, []string{"/", "/login", "/signup"}, cfg.Routes.Public)
}

func TestLoad_WithExplicitPath_BrokenYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "broken.yaml", brokenYAML)

	_, err := Load(cfgPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_RejectsSameEntryAndLanding(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "loop.yaml", `
routes:
  entry: "/dashboard"
  landing: "/dashboard"
`)

	_, err := Load(cfgPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "must differ")
}

func TestLoad_WithCONFIG_PATH_OK(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "from_env_path.yaml", minimalYAML)
	t.Setenv("CONFIG_PATH", cfgPath)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "stage", cfg.Env)
}

func TestLoad_WithLocalYAML_OK(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	writeFile(t, ".", "local.yaml", sampleYAML)
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	require.Equal(t, "8080", cfg.HTTP.Port)
}

// Явный путь важнее CONFIG_PATH и local.yaml.
func TestLoad_Priority_ExplicitWinsOverEnvAndLocal(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	explicit := writeFile(t, dir, "explicit.yaml", `
env: "prod"
http: { host: "0.0.0.0", port: "8080" }
`)
	badFromEnv := writeFile(t, dir, "bad.yaml", brokenYAML)
	t.Setenv("CONFIG_PATH", badFromEnv)
	writeFile(t, ".", "local.yaml", `
env: "local"
http: { host: "127.0.0.1", port: "9999" }
`)

	cfg, err := Load(explicit)
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, "8080", cfg.HTTP.Port)
}

func TestLoad_EnvOverlay_OverridesValuesFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", sampleYAML)

	t.Setenv("HTTP_PORT", "18080")
	t.Setenv("BACKEND_IDENTITY_URL", "http://10.0.0.1:9000")
	t.Setenv("SESSION_EXPIRY_BUFFER", "2m")
	t.Setenv("SERVICE_TIMEOUT", "5s")

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	require.Equal(t, "18080", cfg.HTTP.Port)
	require.Equal(t, "http://10.0.0.1:9000", cfg.Backend.IdentityURL)
	require.Equal(t, 2*time.Minute, cfg.Session.ExpiryBuffer)
	require.Equal(t, 5*time.Second, cfg.Timeouts.Service)
}

// «Только ENV» без файлов.
func TestLoad_EnvOnly_OK(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("CONFIG_PATH", "")

	t.Setenv("ENV", "dev")
	t.Setenv("HTTP_PORT", "50091")
	t.Setenv("BACKEND_ANALYTICS_URL", "http://analytics:8080")
	t.Setenv("SESSION_CSRF_COOKIE", "my_csrf")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Env)
	require.Equal(t, "50091", cfg.HTTP.Port)
	require.Equal(t, "http://analytics:8080", cfg.Backend.AnalyticsURL)
	require.Equal(t, "my_csrf", cfg.Session.CSRFCookie)
}

func TestMustLoad_PanicsOnError(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		_ = MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	})
}
