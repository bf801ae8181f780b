package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultUpstreamTimeout    = 30 * time.Second
	DefaultUpstreamMaxRetries = 2
	UpstreamUserAgent         = "fipeline/1.0 (+https://github.com/fipeline)"
)

const (
	DefaultDailyQuota  = 450
	DefaultQuotaWindow = 24 * time.Hour
)

const (
	DefaultBrandsTopic    = "brands"
	DefaultMessageTimeout = 10 * time.Minute
)

const (
	CacheKeyBrands          = "brands:all"
	CacheKeyPrefixVehicles  = "vehicles:brand:"
	DefaultBrandsCacheTTL   = 1 * time.Hour
	DefaultVehiclesCacheTTL = 30 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultMigrationsPath = "migrations/postgres"
)
