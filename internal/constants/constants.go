package constants

import "time"

const (
	DefaultHTTPTimeout = 10 * time.Second
	ShutdownTimeout    = 5 * time.Second
)

const (
	ServiceName = "exboard"
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	FleetAPIPath = "/apiv1"

	MethodGet          = "Get"
	MethodAuthenticate = "Authenticate"

	TypeNameRule           = "Rule"
	TypeNameDevice         = "Device"
	TypeNameExceptionEvent = "ExceptionEvent"
)

const (
	// TicksPerSecond is the number of 100ns intervals in one second.
	TicksPerSecond = 10_000_000
)

const (
	UnknownRule  = "Unknown Rule"
	UnknownAsset = "Unknown Asset"
	NotAvailable = "N/A"

	NoExceptionsMessage = "No exceptions found for the selected criteria."
	FetchErrorPrefix    = "Error fetching data: "
	InitFailureMessage  = "Could not load initial data. Please refresh."
	LoadingMessage      = "Loading..."
)

const (
	AllRulesLabel  = "All Rules"
	AllAssetsLabel = "All Assets"
)

const (
	DefaultDateTimeLayout = "1/2/2006, 3:04:05 PM"
	SearchTimestampLayout = "2006-01-02T15:04:05.000Z"
	DefaultCollationTag   = "en"
)

const (
	SessionKeyPrefix    = "exboard:session:"
	GenerationKeyPrefix = "exboard:generation:"
	DefaultSessionTTL   = 30 * time.Minute
	DefaultMaxSessions  = 10_000
)

const (
	StoreTypeMemory = "memory"
	StoreTypeRedis  = "redis"
)
