package internal

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"my-chat-backend/domain/event"
	"my-chat-backend/errors"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Host           string `env:"HOST,default=0.0.0.0" validate:"required"`
	Port           int    `env:"PORT,default=5001" validate:"min=1,max=65535"`
	GrpcHealthPort int    `env:"GRPC_HEALTH_PORT,default=0" validate:"min=0,max=65535"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO" validate:"required"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true" validate:"required"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true" validate:"required"`
	MediaDir       string `env:"MEDIA_DIR,default=./media" validate:"required"`
	MediaBaseURL   string `env:"MEDIA_BASE_URL,default=/media" validate:"required"`
	MaxMediaBytes  int    `env:"MAX_MEDIA_BYTES,default=5242880" validate:"min=1"`

	JWTSecret      string        `env:"JWT_SECRET,required=true" validate:"min=16"`
	TokenDuration  time.Duration `env:"TOKEN_DURATION,default=168h" validate:"gt=0"`
	AllowedOrigins string        `env:"ALLOWED_ORIGINS"`

	MaxGroupSize      int           `env:"MAX_GROUP_SIZE,default=10" validate:"min=2"`
	StoreTimeout      time.Duration `env:"STORE_TIMEOUT,default=2s" validate:"gt=0"`
	UploadTimeout     time.Duration `env:"UPLOAD_TIMEOUT,default=10s" validate:"gt=0"`
	DeliveryTimeout   time.Duration `env:"DELIVERY_TIMEOUT,default=1s"`
	BlockedSendPolicy string        `env:"BLOCKED_SEND_POLICY,default=suppress" validate:"oneof=suppress reject"`
	EchoKinds         string        `env:"ECHO_KINDS"`

	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64" validate:"min=1"`
	WsWriteTimeout       time.Duration `env:"WS_WRITE_TIMEOUT,default=10s"`
	WsPingInterval       time.Duration `env:"WS_PING_INTERVAL,default=30s"`
	RegistryShards       int           `env:"REGISTRY_SHARDS,default=64" validate:"min=1"`
	QueueThreshold       float64       `env:"QUEUE_THRESHOLD,default=0.8" validate:"gt=0,lte=1"`

	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
	LimitMessages   *int   `env:"LIMIT_MESSAGES"`
	SearchLimit     int    `env:"SEARCH_LIMIT,default=20" validate:"min=1"`

	StatsInterval   time.Duration `env:"STATS_INTERVAL,default=1m"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
}

// LoadConfig reads a local .env when present, then the environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.InvalidArgument(err)
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	_, err := c.EchoKindList()
	return err
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

// EchoKindList parses ECHO_KINDS, the event kinds also delivered back to
// the connections of the user who caused them.
func (c Config) EchoKindList() ([]event.Kind, error) {
	var kinds []event.Kind
	for _, name := range splitList(c.EchoKinds) {
		kind, ok := event.ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown event kind %q in ECHO_KINDS", errors.ErrInvalidArgument, name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("%w: CHARACTER_REPLACEMENT must be a single character, got %q",
			errors.ErrInvalidArgument, str)
	}
	return r[0], nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
