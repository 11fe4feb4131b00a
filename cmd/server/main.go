package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/watchroom/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	secret = configVar[string]{
		envKey:       "SERVER_SECRET",
		flagKey:      "secret",
		defaultValue: "",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	membersLimit = configVar[int]{
		envKey:       "SERVER_MEMBERS_LIMIT",
		flagKey:      "members-limit",
		defaultValue: 9,
	}
	chatLimit = configVar[int]{
		envKey:       "SERVER_CHAT_LIMIT",
		flagKey:      "chat-limit",
		defaultValue: 200,
	}
	roomGraceSec = configVar[int]{
		envKey:       "SERVER_ROOM_GRACE_SEC",
		flagKey:      "room-grace-sec",
		defaultValue: 30,
	}
	roomTTLSec = configVar[int]{
		envKey:       "SERVER_ROOM_TTL_SEC",
		flagKey:      "room-ttl-sec",
		defaultValue: 24 * 60 * 60,
	}
	sessionTTLSec = configVar[int]{
		envKey:       "SERVER_SESSION_TTL_SEC",
		flagKey:      "session-ttl-sec",
		defaultValue: 60,
	}
	presenceSec = configVar[int]{
		envKey:       "SERVER_PRESENCE_SEC",
		flagKey:      "presence-sec",
		defaultValue: 5 * 60,
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
	pflag.String(secret.flagKey, secret.defaultValue, "Server secret")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.Int(membersLimit.flagKey, membersLimit.defaultValue, "Maximum number of members in a room")
	pflag.Int(chatLimit.flagKey, chatLimit.defaultValue, "Maximum number of retained chat messages per room")
	pflag.Int(roomGraceSec.flagKey, roomGraceSec.defaultValue, "Seconds an emptied room survives before reaping")
	pflag.Int(roomTTLSec.flagKey, roomTTLSec.defaultValue, "Seconds an idle room survives without traffic")
	pflag.Int(sessionTTLSec.flagKey, sessionTTLSec.defaultValue, "Seconds a connect token stays valid")
	pflag.Int(presenceSec.flagKey, presenceSec.defaultValue, "Seconds a presence record stays fresh")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(secret.flagKey, secret.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(membersLimit.flagKey, membersLimit.envKey)
	viper.BindEnv(chatLimit.flagKey, chatLimit.envKey)
	viper.BindEnv(roomGraceSec.flagKey, roomGraceSec.envKey)
	viper.BindEnv(roomTTLSec.flagKey, roomTTLSec.envKey)
	viper.BindEnv(sessionTTLSec.flagKey, sessionTTLSec.envKey)
	viper.BindEnv(presenceSec.flagKey, presenceSec.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)

	viper.SetDefault(secret.flagKey, secret.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(membersLimit.flagKey, membersLimit.defaultValue)
	viper.SetDefault(chatLimit.flagKey, chatLimit.defaultValue)
	viper.SetDefault(roomGraceSec.flagKey, roomGraceSec.defaultValue)
	viper.SetDefault(roomTTLSec.flagKey, roomTTLSec.defaultValue)
	viper.SetDefault(sessionTTLSec.flagKey, sessionTTLSec.defaultValue)
	viper.SetDefault(presenceSec.flagKey, presenceSec.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)

	return &app.AppConfig{
		Secret:        viper.GetString(secret.flagKey),
		Host:          viper.GetString(host.flagKey),
		Port:          viper.GetInt(port.flagKey),
		LogLevel:      viper.GetString(logLevel.flagKey),
		MembersLimit:  viper.GetInt(membersLimit.flagKey),
		ChatLimit:     viper.GetInt(chatLimit.flagKey),
		RoomGraceSec:  viper.GetInt(roomGraceSec.flagKey),
		RoomTTLSec:    viper.GetInt(roomTTLSec.flagKey),
		SessionTTLSec: viper.GetInt(sessionTTLSec.flagKey),
		PresenceSec:   viper.GetInt(presenceSec.flagKey),
		RedisPort:     viper.GetInt(redisPort.flagKey),
		RedisHost:     viper.GetString(redisHost.flagKey),
		RedisPassword: viper.GetString(redisPassword.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
