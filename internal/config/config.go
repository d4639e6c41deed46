package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// 決済ゲートウェイの動作モード
type GatewayMode string

const (
	GatewayModeSandbox GatewayMode = "sandbox"
	GatewayModeLive    GatewayMode = "live"
)

type GatewayConfig struct {
	Mode          GatewayMode
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
}

func (g GatewayConfig) IsSandbox() bool {
	return g.Mode == GatewayModeSandbox
}

// 通知の送り先（log / rabbitmq / kafka）
type NotifyConfig struct {
	Transport    string
	RabbitMQURL  string
	Queue        string
	KafkaBrokers []string
	KafkaTopic   string
	Timeout      time.Duration
}

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8080）
	GoEnv string // dev/prod

	DatabaseURL      string // あれば最優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string
	AutoMigrate      bool // 起動時にgoose upを流す

	JWTSecret string // JWT署名シークレット

	Currency string // ISOコード（INR）

	Gateway GatewayConfig
	Notify  NotifyConfig

	RedisAddr string // 空ならWebhookの重複チェックはDBだけ

	WebhookRateRPS   float64
	WebhookRateBurst int

	ShutdownTimeout time.Duration
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	gwTimeout, err := durationDefault("GATEWAY_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	notifyTimeout, err := durationDefault("NOTIFY_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	shutdownTimeout, err := durationDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	rps, err := floatDefault("WEBHOOK_RATE_RPS", 20)
	if err != nil {
		return Config{}, err
	}
	burst, err := atoiDefault("WEBHOOK_RATE_BURST", 40)
	if err != nil {
		return Config{}, err
	}
	autoMigrate, err := boolDefault("AUTO_MIGRATE", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:  getenv("PORT", "8080"),
		GoEnv: os.Getenv("GO_ENV"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),
		AutoMigrate:      autoMigrate,

		JWTSecret: os.Getenv("JWT_SECRET"),

		Currency: strings.ToUpper(getenv("CURRENCY", "INR")),

		Gateway: GatewayConfig{
			KeyID:         os.Getenv("GATEWAY_KEY_ID"),
			KeySecret:     os.Getenv("GATEWAY_KEY_SECRET"),
			WebhookSecret: os.Getenv("GATEWAY_WEBHOOK_SECRET"),
			BaseURL:       strings.TrimRight(getenv("GATEWAY_BASE_URL", "https://api.razorpay.com"), "/"),
			Timeout:       gwTimeout,
		},

		Notify: NotifyConfig{
			Transport:    strings.ToLower(getenv("NOTIFY_TRANSPORT", "log")),
			RabbitMQURL:  os.Getenv("RABBITMQ_URL"),
			Queue:        getenv("NOTIFY_QUEUE", "checkout.notifications"),
			KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
			KafkaTopic:   getenv("KAFKA_TOPIC", "checkout.notifications"),
			Timeout:      notifyTimeout,
		},

		RedisAddr: os.Getenv("REDIS_ADDR"),

		WebhookRateRPS:   rps,
		WebhookRateBurst: burst,

		ShutdownTimeout: shutdownTimeout,
	}

	mode, err := resolveGatewayMode(os.Getenv("GATEWAY_MODE"), cfg.Gateway)
	if err != nil {
		return Config{}, err
	}
	cfg.Gateway.Mode = mode

	//必須チェック
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		if cfg.PostgresUser == "" {
			return Config{}, fmt.Errorf("POSTGRES_USER is required")
		}
		if cfg.PostgresPassword == "" {
			return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
		}
		if cfg.PostgresDB == "" {
			return Config{}, fmt.Errorf("POSTGRES_DB is required")
		}
	}
	if len(cfg.Currency) != 3 {
		return Config{}, fmt.Errorf("CURRENCY must be a 3 letter code")
	}

	//liveは鍵が全部そろっていること
	if cfg.Gateway.Mode == GatewayModeLive {
		if cfg.Gateway.KeyID == "" {
			return Config{}, fmt.Errorf("GATEWAY_KEY_ID is required in live mode")
		}
		if cfg.Gateway.KeySecret == "" {
			return Config{}, fmt.Errorf("GATEWAY_KEY_SECRET is required in live mode")
		}
		if cfg.Gateway.WebhookSecret == "" {
			return Config{}, fmt.Errorf("GATEWAY_WEBHOOK_SECRET is required in live mode")
		}
	} else {
		if cfg.Gateway.KeyID == "" {
			cfg.Gateway.KeyID = "sandbox_key"
		}
		// 未設定ならプロセスごとに乱数の鍵を作る（外部から署名できないように）
		if cfg.Gateway.KeySecret == "" {
			cfg.Gateway.KeySecret = randomSecret()
		}
		if cfg.Gateway.WebhookSecret == "" {
			cfg.Gateway.WebhookSecret = randomSecret()
		}
	}

	switch cfg.Notify.Transport {
	case "log":
	case "rabbitmq":
		if cfg.Notify.RabbitMQURL == "" {
			return Config{}, fmt.Errorf("RABBITMQ_URL is required for rabbitmq transport")
		}
	case "kafka":
		if len(cfg.Notify.KafkaBrokers) == 0 {
			return Config{}, fmt.Errorf("KAFKA_BROKERS is required for kafka transport")
		}
	default:
		return Config{}, fmt.Errorf("NOTIFY_TRANSPORT must be log, rabbitmq or kafka")
	}

	return cfg, nil
}

// PostgresのDSN
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// 未指定なら鍵がそろっているときだけlive
func resolveGatewayMode(v string, g GatewayConfig) (GatewayMode, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		if g.KeyID != "" && g.KeySecret != "" {
			return GatewayModeLive, nil
		}
		return GatewayModeSandbox, nil
	case string(GatewayModeSandbox):
		return GatewayModeSandbox, nil
	case string(GatewayModeLive):
		return GatewayModeLive, nil
	default:
		return "", fmt.Errorf("GATEWAY_MODE must be sandbox or live")
	}
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func floatDefault(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return f, nil
}

func boolDefault(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be true/false: %w", key, err)
	}
	return b, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func randomSecret() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
