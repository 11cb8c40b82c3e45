package config

import "time"

const welcomeMessage = `Welcome to ReadWiser!

How to save a quote:
1. Share a URL to me first
2. Then send the quote text
(Or send both together)

Add #tags to categorize.

Commands:
/random - Get a random quote
/last - Show recently saved quotes
/digest - Get your digest now
/stats - View your statistics
/cancel - Clear pending URL

Search:
/search <word> - Search in quotes
/tag <name> - Find by tag
/source <domain> - Find by source

Manage:
/fav <id> - Toggle favorite
/favorites - Show all favorites
/delete <id> - Delete a quote
/export - Export all quotes as JSON

Schedule:
/digest_on, /digest_off - Weekly digest
/daily_on, /daily_off - Quote of the day`

// defaults must list every key that can be overridden from the environment;
// viper only unmarshals keys it knows about.
var defaults = map[string]any{
	"logger.level": "info",
	"logger.json":  false,

	"telegram.token": "",

	"database.path":         "data/readwiser.db",
	"database.busy_timeout": 5 * time.Second,

	"metadata.timeout":          10 * time.Second,
	"metadata.max_body_bytes":   int64(1 << 20),
	"metadata.user_agent":       "Mozilla/5.0 (compatible; ReadWiserBot/1.0)",
	"metadata.retry_attempts":   2,
	"metadata.retry_delay":      500 * time.Millisecond,
	"metadata.breaker_failures": 5,
	"metadata.breaker_cooldown": time.Minute,

	"pending.ttl": 5 * time.Minute,

	"digest.count": 5,

	"scheduler.timezone": "UTC",

	"scheduler.tasks.digest.enabled":     true,
	"scheduler.tasks.digest.day_of_week": "sun",
	"scheduler.tasks.digest.hour":        9,
	"scheduler.tasks.digest.minute":      0,

	"scheduler.tasks.daily_quote.enabled":     true,
	"scheduler.tasks.daily_quote.day_of_week": "",
	"scheduler.tasks.daily_quote.hour":        8,
	"scheduler.tasks.daily_quote.minute":      0,

	"scheduler.tasks.sql_maintenance.enabled":     true,
	"scheduler.tasks.sql_maintenance.day_of_week": "mon",
	"scheduler.tasks.sql_maintenance.hour":        3,
	"scheduler.tasks.sql_maintenance.minute":      30,

	"metrics.addr": "",

	"messages.welcome":       welcomeMessage,
	"messages.general_error": "An error occurred. Please try again later.",
}
