package handlers

import (
	"repost-bot/bot"
	"repost-bot/database"
)

// Register wires all event handlers to the bot. Events are dispatched
// synchronously from the gateway loop (SyncEvents) so that lock queue
// submission order matches delivery order; the handlers themselves only
// enqueue and return.
func Register(b *bot.Bot, store *database.Store) {
	b.Session.SyncEvents = true

	r := NewReconciler(b.Session, store)
	b.Resync = r.Resync
	b.Session.AddHandler(r.Ready)
	b.Session.AddHandler(r.MessageCreate)
	b.Session.AddHandler(r.MessageUpdate)
	b.Session.AddHandler(r.MessageDelete)
	b.Session.AddHandler(r.MessageDeleteBulk)
	b.Session.AddHandler(InteractionCreate(store))
}
