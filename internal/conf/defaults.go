// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "companyfix")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "companyfix.log")
	viper.SetDefault("main.log.maxsizemb", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxagedays", 28)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "console.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "companyfix")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "console")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("migration.pagesize", 50)
	viper.SetDefault("migration.throttle", 500*time.Millisecond)
	viper.SetDefault("migration.dryrun", false)
	viper.SetDefault("migration.minowneridlength", 3)
	viper.SetDefault("migration.auditlogsize", 500)
	viper.SetDefault("migration.cache.capacity", 1000)
	viper.SetDefault("migration.cache.ttl", 10*time.Minute)

	viper.SetDefault("progress.samplelimit", 1000)
	viper.SetDefault("progress.pollinterval", 30*time.Second)

	viper.SetDefault("http.host", "0.0.0.0")
	viper.SetDefault("http.port", "8090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")

	// Built-in repair jobs. Each backfills companyId onto one collection by
	// cross-referencing the users collection. Collections and field names are
	// overridable per deployment.
	viper.SetDefault("jobs.conversations.title", "Conversations companyId backfill")
	viper.SetDefault("jobs.conversations.collection", "conversations")
	viper.SetDefault("jobs.conversations.referencecollection", "users")
	viper.SetDefault("jobs.conversations.ownerfield", "companyId")
	viper.SetDefault("jobs.conversations.candidatesfield", "participantIds")
	viper.SetDefault("jobs.conversations.referenceownerfield", "companyId")
	viper.SetDefault("jobs.conversations.orderby", "createdAt desc")
	viper.SetDefault("jobs.conversations.dependson", []string{})

	viper.SetDefault("jobs.products.title", "Products companyId backfill")
	viper.SetDefault("jobs.products.collection", "products")
	viper.SetDefault("jobs.products.referencecollection", "users")
	viper.SetDefault("jobs.products.ownerfield", "companyId")
	viper.SetDefault("jobs.products.candidatesfield", "ownerIds")
	viper.SetDefault("jobs.products.referenceownerfield", "companyId")
	viper.SetDefault("jobs.products.orderby", "createdAt desc")
	viper.SetDefault("jobs.products.dependson", []string{"conversations"})

	viper.SetDefault("jobs.bookings.title", "Bookings companyId backfill")
	viper.SetDefault("jobs.bookings.collection", "bookings")
	viper.SetDefault("jobs.bookings.referencecollection", "users")
	viper.SetDefault("jobs.bookings.ownerfield", "companyId")
	viper.SetDefault("jobs.bookings.candidatesfield", "attendeeIds")
	viper.SetDefault("jobs.bookings.referenceownerfield", "companyId")
	viper.SetDefault("jobs.bookings.orderby", "createdAt desc")
	viper.SetDefault("jobs.bookings.dependson", []string{"conversations"})

	viper.SetDefault("jobs.media.title", "Content media companyId backfill")
	viper.SetDefault("jobs.media.collection", "media")
	viper.SetDefault("jobs.media.referencecollection", "users")
	viper.SetDefault("jobs.media.ownerfield", "companyId")
	viper.SetDefault("jobs.media.candidatesfield", "uploaderIds")
	viper.SetDefault("jobs.media.referenceownerfield", "companyId")
	viper.SetDefault("jobs.media.orderby", "createdAt desc")
	viper.SetDefault("jobs.media.dependson", []string{"conversations"})
}
