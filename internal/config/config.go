package config

import (
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting. Values come from the environment,
// optionally seeded from a local .env file.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`

	PostgresDSN string `env:"POSTGRES_DSN,required=true"`

	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	JWTSecret string        `env:"JWT_SECRET,required=true"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=72h"`

	MaxGroupMembers int `env:"MAX_GROUP_MEMBERS,default=64"`
	SendBufferSize  int `env:"SEND_BUFFER_SIZE,default=256"`
}

// Load reads .env (if present) and unmarshals the environment into a Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
