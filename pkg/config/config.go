package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	LogLevel          string // sets the log level (zap log level values)
	LogFormat         string // text vs json
	LogFilter         string // zapfilter rules, empty means no filtering
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry ("stdout" for console exporters)
	RegionName        string // name of the shared memory region
	ShmDir            string // directory holding shared memory files (non-windows)
	SampleRate        int    // polling frequency in samples per second
	WaitForProducer   string // duration to wait for the producer region to appear
	StatsInterval     string // interval for logging derived value statistics
)

const (
	DefaultRegionName = `Local\ManiaPlanet_Telemetry`
	DefaultSampleRate = 100
)

// Config holds the configuration values which are used by the application
type Config struct {
	PrintValues bool // if true, derived values of each update are logged on debug level
}
