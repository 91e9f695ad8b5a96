package infra

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Режимы доставки учетных данных. Выбирается один на деплой.
const (
	AuthModeHeader  = "header"  // Authorization: Bearer <jwt>
	AuthModeCookie  = "cookie"  // HttpOnly cookie с jwt
	AuthModeSession = "session" // серверная сессия по cookie
	AuthModeOAuth   = "oauth"   // токен внешнего IdP, проверка через JWKS
)

// Драйверы хранилищ.
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Config: корневая структура конфигурации Orbit API.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Session  SessionConfig  `mapstructure:"session"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Cookie   CookieConfig   `mapstructure:"cookie"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// CIDR или адреса балансировщиков, которым разрешено передавать IP клиента в заголовках
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// Addr собирает адрес для http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TrustedProxyPrefixes разбирает server.trusted_proxies. Одиночный адрес становится /32 (/128).
func (s ServerConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, raw := range s.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("server.trusted_proxies: %w", err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("server.trusted_proxies: %w", err)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// DatabaseConfig описывает основное хранилище (PostgreSQL или память для dev).
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (refresh-записи и сессии).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит настройки выпуска и проверки токенов.
type AuthConfig struct {
	Mode           string        `mapstructure:"mode"`
	Algorithm      string        `mapstructure:"algorithm"` // HS256 или RS256
	Secret         string        `mapstructure:"secret"`
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
	RefreshStore   string        `mapstructure:"refresh_store"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	SignupRole     string        `mapstructure:"signup_role"`

	// Лимит попыток логина/регистрации с одного IP в минуту (0: без лимита)
	LoginRatePerMinute int `mapstructure:"login_rate_per_minute"`

	PublicKey  []byte
	PrivateKey []byte
}

// SessionConfig: серверные сессии (режим session).
type SessionConfig struct {
	Store string        `mapstructure:"store"`
	TTL   time.Duration `mapstructure:"ttl"`
}

// OAuthConfig: внешний IdP (режим oauth).
type OAuthConfig struct {
	Domain   string        `mapstructure:"domain"`
	ClientID string        `mapstructure:"client_id"`
	Audience string        `mapstructure:"audience"`
	Issuer   string        `mapstructure:"issuer"`
	JWKSURI  string        `mapstructure:"jwks_uri"`
	JWKSTTL  time.Duration `mapstructure:"jwks_ttl"`
	// Лимит обращений за ключами в минуту
	JWKSRequestsPerMinute int `mapstructure:"jwks_requests_per_minute"`
}

// CookieConfig: параметры cookie менеджера.
type CookieConfig struct {
	Domain      string `mapstructure:"domain"`
	ProjectMode string `mapstructure:"project_mode"` // production, staging, development
	Secure      bool   `mapstructure:"secure"`
	SameSite    string `mapstructure:"same_site"` // lax, strict, none
	DefaultPath string `mapstructure:"default_path"`
	Prefix      string `mapstructure:"prefix"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	File   string `mapstructure:"file"`   // если задан, пишем в ротируемый файл
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
// path может быть пустым: тогда ищем config.yaml в . и ./configs.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// 2. ENV перекрывает файл: ORBIT_AUTH_SECRET=... перекроет auth.secret
	v.SetEnvPrefix("ORBIT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет: работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Ключи RS256: сначала PEM прямо из ENV (Docker/K8s), потом файл
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "ORBIT_AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "ORBIT_AUTH_PRIVATE_KEY_DATA")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("database.driver", DriverMemory)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("auth.mode", AuthModeHeader)
	v.SetDefault("auth.algorithm", "HS256")
	v.SetDefault("auth.issuer", "api.orbit")
	v.SetDefault("auth.audience", "api.orbit")
	v.SetDefault("auth.access_ttl", time.Hour)
	v.SetDefault("auth.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("auth.refresh_store", DriverMemory)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.signup_role", "user")
	v.SetDefault("auth.login_rate_per_minute", 20)
	v.SetDefault("session.store", DriverMemory)
	v.SetDefault("session.ttl", time.Hour)
	v.SetDefault("oauth.jwks_ttl", 10*time.Minute)
	v.SetDefault("oauth.jwks_requests_per_minute", 5)
	v.SetDefault("cookie.same_site", "lax")
	v.SetDefault("cookie.default_path", "/")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	// Ключи без дефолтов viper не увидит в ENV при Unmarshal: привязываем явно
	for _, key := range []string{
		"server.host", "server.trusted_proxies", "database.url", "redis.password",
		"auth.secret", "auth.public_key_path", "auth.private_key_path",
		"oauth.domain", "oauth.client_id", "oauth.audience", "oauth.issuer", "oauth.jwks_uri",
		"cookie.domain", "cookie.project_mode", "cookie.secure", "cookie.prefix",
		"logger.file",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate: строгая проверка того, без чего сервис стартовать не должен.
func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case AuthModeHeader, AuthModeCookie, AuthModeSession:
		switch c.Auth.Algorithm {
		case "HS256":
			if len(c.Auth.Secret) < 32 {
				return fmt.Errorf("auth.secret too short (min 32 chars)")
			}
		case "RS256":
			if len(c.Auth.PrivateKey) == 0 || len(c.Auth.PublicKey) == 0 {
				return fmt.Errorf("auth.algorithm RS256 requires both key pair halves")
			}
		default:
			return fmt.Errorf("unsupported auth.algorithm %q", c.Auth.Algorithm)
		}
	case AuthModeOAuth:
		if c.OAuth.JWKSURI == "" && c.OAuth.Domain == "" {
			return fmt.Errorf("oauth mode requires oauth.jwks_uri or oauth.domain")
		}
		if c.OAuth.Audience == "" {
			return fmt.Errorf("oauth mode requires oauth.audience")
		}
	default:
		return fmt.Errorf("unsupported auth.mode %q", c.Auth.Mode)
	}

	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.Auth.RefreshTTL <= c.Auth.AccessTTL {
		return fmt.Errorf("auth.refresh_ttl must be longer than auth.access_ttl")
	}
	if _, err := c.Server.TrustedProxyPrefixes(); err != nil {
		return err
	}
	if c.Database.Driver == DriverPostgres && c.Database.URL == "" {
		return fmt.Errorf("database.url is required for postgres driver")
	}
	return nil
}

// JWKSEndpoint возвращает URI набора ключей IdP.
// По умолчанию: стандартный путь Auth0 относительно домена.
func (o OAuthConfig) JWKSEndpoint() string {
	if o.JWKSURI != "" {
		return o.JWKSURI
	}
	return fmt.Sprintf("https://%s/.well-known/jwks.json", strings.TrimSuffix(o.Domain, "/"))
}

// IssuerURL возвращает ожидаемый iss внешнего IdP.
func (o OAuthConfig) IssuerURL() string {
	if o.Issuer != "" {
		return o.Issuer
	}
	return fmt.Sprintf("https://%s/", strings.TrimSuffix(o.Domain, "/"))
}

func loadKeyResource(path string, envDataKey string) []byte {
	// Если ключ прилетел напрямую в ENV
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	// Иначе читаем файл по пути из конфига
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
