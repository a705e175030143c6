package command

type MetricsConfig struct {
	// Addr is where /metrics is served. Empty disables the endpoint.
	Addr string `json:"addr" env:"STARLANE_METRICS_ADDR"`
}

type TelemetryConfig struct {
	ServiceName string `json:"service_name"`
	// Endpoint is an OTLP/HTTP collector URL. Empty disables tracing.
	Endpoint string `json:"endpoint" env:"STARLANE_OTLP_ENDPOINT"`
}

func (c *TelemetryConfig) serviceName() string {
	if c.ServiceName == "" {
		return "starlane"
	}
	return c.ServiceName
}
