package main

import (
	"log"

	"github.com/spf13/viper"

	"repost-bot/bot"
	"repost-bot/config"
	"repost-bot/database"
	"repost-bot/handlers"
)

func main() {
	config.LoadConfig()

	db, err := database.InitDB(viper.GetString("database.path"))
	if err != nil {
		log.Fatalf("Error initializing database: %v", err)
	}
	defer db.Close()
	store := database.NewStore(db)

	bot.Run(store, func(b *bot.Bot) {
		handlers.Register(b, store)
	})
}
