package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultEnv             = "development"
	defaultLogLevel        = "info"
	defaultGRPCAddr        = ":50051"
	defaultHTTPAddr        = ":8080"
	defaultJournalDir      = "./data/journal"
	defaultSegmentBytes    = 2 * 1024 * 1024
	defaultOutboxDir       = "./data/outbox"
	defaultKafkaTopic      = "ledger.orders"
	defaultKafkaClient     = "sarama"
	defaultBroadcastPeriod = 2 * time.Second
	defaultMaxRetries      = 5
	defaultSnapshotDir     = "./data/snapshots"
	defaultCommandBuffer   = 1024
)

// Config keeps the runtime configuration for the ledger server.
type Config struct {
	Env       string
	Log       LogConfig
	GRPC      ListenConfig
	HTTP      ListenConfig
	Journal   JournalConfig
	Outbox    OutboxConfig
	Kafka     KafkaConfig
	Broadcast BroadcastConfig
	Snapshot  SnapshotConfig
	Service   ServiceConfig
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
	File  string
}

type ListenConfig struct {
	Addr string `validate:"required"`
}

// JournalConfig controls the submission journal (entry WAL).
type JournalConfig struct {
	Enabled      bool
	Dir          string `validate:"required_if=Enabled true"`
	SegmentBytes int64  `validate:"gt=0"`
}

// OutboxConfig controls the pebble-backed event outbox (exit WAL).
type OutboxConfig struct {
	Enabled bool
	Dir     string `validate:"required_if=Enabled true"`
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string `validate:"required_if=Enabled true"`
	Topic   string   `validate:"required_if=Enabled true"`
	Client  string   `validate:"oneof=sarama kafka-go"`
}

type BroadcastConfig struct {
	Interval   time.Duration `validate:"gt=0"`
	MaxRetries int           `validate:"gte=1"`
}

// SnapshotConfig controls periodic snapshot export. Interval 0 disables it.
type SnapshotConfig struct {
	Dir      string `validate:"required"`
	Interval time.Duration
}

type ServiceConfig struct {
	CommandBuffer int `validate:"gt=0"`
}

// Load builds Config from the optional .env file and the environment.
// Priority: ENV > .env file > defaults.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	segBytes, err := getInt("JOURNAL_SEGMENT_BYTES", defaultSegmentBytes)
	if err != nil {
		return nil, err
	}
	maxRetries, err := getInt("BROADCAST_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, err
	}
	cmdBuffer, err := getInt("COMMAND_BUFFER", defaultCommandBuffer)
	if err != nil {
		return nil, err
	}
	broadcastEvery, err := getDuration("BROADCAST_INTERVAL", defaultBroadcastPeriod)
	if err != nil {
		return nil, err
	}
	snapshotEvery, err := getDuration("SNAPSHOT_INTERVAL", 0)
	if err != nil {
		return nil, err
	}
	journalOn, err := getBool("JOURNAL_ENABLED", true)
	if err != nil {
		return nil, err
	}
	outboxOn, err := getBool("OUTBOX_ENABLED", true)
	if err != nil {
		return nil, err
	}
	kafkaOn, err := getBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env: getString("APP_ENV", defaultEnv),
		Log: LogConfig{
			Level: getString("LOG_LEVEL", defaultLogLevel),
			File:  os.Getenv("LOG_FILE"),
		},
		GRPC: ListenConfig{Addr: getString("GRPC_ADDR", defaultGRPCAddr)},
		HTTP: ListenConfig{Addr: getString("HTTP_ADDR", defaultHTTPAddr)},
		Journal: JournalConfig{
			Enabled:      journalOn,
			Dir:          getString("JOURNAL_DIR", defaultJournalDir),
			SegmentBytes: int64(segBytes),
		},
		Outbox: OutboxConfig{
			Enabled: outboxOn,
			Dir:     getString("OUTBOX_DIR", defaultOutboxDir),
		},
		Kafka: KafkaConfig{
			Enabled: kafkaOn,
			Brokers: getList("KAFKA_BROKERS"),
			Topic:   getString("KAFKA_TOPIC", defaultKafkaTopic),
			Client:  getString("KAFKA_CLIENT", defaultKafkaClient),
		},
		Broadcast: BroadcastConfig{
			Interval:   broadcastEvery,
			MaxRetries: maxRetries,
		},
		Snapshot: SnapshotConfig{
			Dir:      getString("SNAPSHOT_DIR", defaultSnapshotDir),
			Interval: snapshotEvery,
		},
		Service: ServiceConfig{CommandBuffer: cmdBuffer},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("convert %s value %q to bool: %w", key, value, err)
	}
	return parsed, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to duration: %w", key, value, err)
	}
	return parsed, nil
}

// getList splits a comma separated value; empty entries are dropped.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
