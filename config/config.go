package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from a .env file and config.yaml.
// Environment variables override same-named settings from the file.
//
// Keys:
//
//	BOT_TOKEN           Discord bot token
//	bot.guildId         monitored guild
//	bot.channelId       monitored channel
//	bot.adminChannelId  optional channel for embed logging
//	bot.deleteNoImages  delete posts lacking any link or attachment
//	bot.resyncSpec      cron spec for the periodic history re-sync
//	database.path       SQLite database file
func LoadConfig() {
	// Load environment variables from .env, ignoring a missing file.
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, skipping.")
	}

	viper.SetConfigName("config") // config file name (without extension)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// A missing config file is fine; environment variables and
			// defaults carry the load.
			log.Printf("Config file (config.yaml) not found, using environment variables and defaults.")
		} else {
			panic(fmt.Errorf("fatal error reading config file: %w", err))
		}
	}

	viper.SetDefault("bot.resyncSpec", "@hourly")
	viper.SetDefault("database.path", "data/repost.db")
}
