package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "lenspool"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 15 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 << 20 // 1MB

	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// The pool holds exactly two interchangeable camera units.
	DefaultUnitIDs = "cam-1,cam-2"

	// One waiter per contested slot; a second waitlist request for the
	// same conflicting booking is denied outright.
	DefaultWaitlistCapPerSlot = 1

	// A cancellation inside this window before the committed end of
	// use counts as a late cancellation.
	DefaultLateCancelWindow = 12 * time.Hour

	// Advisory unit locks auto-expire so a crashed request cannot
	// wedge the unit.
	DefaultUnitLockTTL = 10 * time.Second

	DefaultNotificationsTopic    = "lenspool.notifications"
	DefaultNotificationsDLQTopic = "lenspool.notifications.dlq"

	DefaultPaginationLimit = 100
)
