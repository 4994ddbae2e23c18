package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/watchroom/engine/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	port = configVar[int]{
		envKey:       "ENGINE_PORT",
		flagKey:      "port",
		defaultValue: 8660,
	}
	host = configVar[string]{
		envKey:       "ENGINE_HOST",
		flagKey:      "host",
		defaultValue: "127.0.0.1",
	}
	logLevel = configVar[string]{
		envKey:       "ENGINE_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	deadBand = configVar[float64]{
		envKey:       "ENGINE_DEAD_BAND_SECONDS",
		flagKey:      "dead-band-seconds",
		defaultValue: 1.0,
	}
	heartbeat = configVar[int]{
		envKey:       "ENGINE_HEARTBEAT_SECONDS",
		flagKey:      "heartbeat-seconds",
		defaultValue: 5,
	}
	staleAfter = configVar[int]{
		envKey:       "ENGINE_STALE_AFTER_SECONDS",
		flagKey:      "stale-after-seconds",
		defaultValue: 30,
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.Int(port.flagKey, port.defaultValue, "Bridge port")
	pflag.String(host.flagKey, host.defaultValue, "Bridge host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Float64(deadBand.flagKey, deadBand.defaultValue, "Seek dead-band in seconds")
	pflag.Int(heartbeat.flagKey, heartbeat.defaultValue, "Presence heartbeat interval in seconds")
	pflag.Int(staleAfter.flagKey, staleAfter.defaultValue, "Presence staleness window in seconds")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(deadBand.flagKey, deadBand.envKey)
	viper.BindEnv(heartbeat.flagKey, heartbeat.envKey)
	viper.BindEnv(staleAfter.flagKey, staleAfter.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(deadBand.flagKey, deadBand.defaultValue)
	viper.SetDefault(heartbeat.flagKey, heartbeat.defaultValue)
	viper.SetDefault(staleAfter.flagKey, staleAfter.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	return &app.AppConfig{
		Host:              viper.GetString(host.flagKey),
		Port:              viper.GetInt(port.flagKey),
		LogLevel:          viper.GetString(logLevel.flagKey),
		DeadBandSeconds:   viper.GetFloat64(deadBand.flagKey),
		HeartbeatSeconds:  viper.GetInt(heartbeat.flagKey),
		StaleAfterSeconds: viper.GetInt(staleAfter.flagKey),
		RedisPort:         viper.GetInt(redisPort.flagKey),
		RedisHost:         viper.GetString(redisHost.flagKey),
		RedisPassword:     viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting engine with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
