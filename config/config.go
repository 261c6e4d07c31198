package config

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port        string
	BindAddress string

	RedisHost string
	RedisPort string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// RoomTTL bounds how long a room document (and its code) lives in the
	// store. Terminal rooms retire their codes when the key expires.
	RoomTTL time.Duration
}

func Load() *Config {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("BIND_ADDRESS", "localhost")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "quizroom")
	viper.SetDefault("DB_PASSWORD", "quizroom123")
	viper.SetDefault("DB_NAME", "quizroom")
	viper.SetDefault("ROOM_TTL", "2h")
	viper.AutomaticEnv()

	return &Config{
		Port:        viper.GetString("PORT"),
		BindAddress: viper.GetString("BIND_ADDRESS"),
		RedisHost:   viper.GetString("REDIS_HOST"),
		RedisPort:   viper.GetString("REDIS_PORT"),
		DBHost:      viper.GetString("DB_HOST"),
		DBPort:      viper.GetString("DB_PORT"),
		DBUser:      viper.GetString("DB_USER"),
		DBPassword:  viper.GetString("DB_PASSWORD"),
		DBName:      viper.GetString("DB_NAME"),
		RoomTTL:     viper.GetDuration("ROOM_TTL"),
	}
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
	})
}
