package bot

import (
	"log"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

var c *cron.Cron

// startScheduler starts the periodic incremental re-sync of the monitored
// channel, which picks up anything a gateway gap dropped. The job is supplied
// by the handler layer so history recovery runs through the same per-id
// serialization as live events; the startup backfill itself runs from the
// ready handler, ahead of them.
func startScheduler(b *Bot) {
	if b.Resync == nil {
		log.Println("No re-sync job registered, scheduler disabled.")
		return
	}
	log.Println("Initializing scheduler...")
	c = cron.New()
	spec := viper.GetString("bot.resyncSpec")
	_, err := c.AddFunc(spec, b.Resync)
	if err != nil {
		log.Fatalf("Could not set up cron job: %v", err)
	}
	c.Start()
	log.Printf("Re-sync scheduled with spec %q.", spec)
}

// stopScheduler stops the cron jobs.
func stopScheduler() {
	if c != nil {
		c.Stop()
		log.Println("Scheduler stopped.")
	}
}
