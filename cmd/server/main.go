package main

import (
	"fmt"
	"os"

	"github.com/ecovend/backend/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// @title EcoVend Rewards API
// @version 1.0
// @description Recycling rewards ledger for smart vending kiosks
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

var (
	configFile string
	rootCmd    = &cobra.Command{
		Use:           "ecovend",
		Short:         "EcoVend recycling rewards backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadConfig(configFile)
		},
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", ".env", "Config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVerifyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and lets environment variables override it.
func loadConfig(path string) {
	viper.SetConfigFile(path)
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	bindings := map[string]string{
		"database.driver":   "DATABASE_DRIVER",
		"database.host":     "DATABASE_HOST",
		"database.port":     "DATABASE_PORT",
		"database.user":     "DATABASE_USER",
		"database.password": "DATABASE_PASSWORD",
		"database.name":     "DATABASE_NAME",
		"database.ssl_mode": "DATABASE_SSL_MODE",
		"database.path":     "DATABASE_PATH",

		"redis.host":     "REDIS_HOST",
		"redis.port":     "REDIS_PORT",
		"redis.password": "REDIS_PASSWORD",
		"redis.db":       "REDIS_DB",

		"jwt.secret_key":     "JWT_SECRET_KEY",
		"jwt.expiry_hours":   "JWT_EXPIRY_HOURS",
		"argon2.time":        "ARGON2_TIME",
		"argon2.memory":      "ARGON2_MEMORY",
		"argon2.threads":     "ARGON2_THREADS",
		"argon2.key_length":  "ARGON2_KEY_LENGTH",
		"argon2.salt_length": "ARGON2_SALT_LENGTH",

		"server.port": "PORT",
		"static.dir":  "STATIC_DIR",
		"log.level":   "LOG_LEVEL",
		"log.pretty":  "LOG_PRETTY",
	}
	for key, env := range bindings {
		viper.BindEnv(key, env)
	}

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("static.dir", "./static/catalog")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Config file not found, using environment: %v\n", err)
	}
}

func newLogger() zerolog.Logger {
	return logger.New("ecovend", viper.GetString("log.level"), viper.GetBool("log.pretty"))
}
