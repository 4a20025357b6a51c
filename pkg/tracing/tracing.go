package tracing

import (
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	jCfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

var serviceName = "signal_trader"

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

// Config: адрес jaeger-agent (UDP). SampleRate 0 значит писать все спаны.
type Config struct {
	Host       string
	Port       int
	SampleRate float64
	LogSpans   bool
}

func (c Config) sampler() *jCfg.SamplerConfig {
	if c.SampleRate <= 0 || c.SampleRate >= 1 {
		return &jCfg.SamplerConfig{Type: "const", Param: 1}
	}
	return &jCfg.SamplerConfig{Type: "probabilistic", Param: c.SampleRate}
}

// InitTracer ставит jaeger глобальным трейсером opentracing.
// Closer сбрасывает буфер спанов, его зовут на остановке приложения.
func InitTracer(conf Config) (opentracing.Tracer, io.Closer, error) {
	if conf.Host == "" {
		return nil, nil, fmt.Errorf("jaeger host is empty")
	}
	cfg := &jCfg.Configuration{
		ServiceName: serviceName,
		Sampler:     conf.sampler(),
		Reporter: &jCfg.ReporterConfig{
			LogSpans:           conf.LogSpans,
			LocalAgentHostPort: fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		},
	}

	tracer, closer, err := cfg.NewTracer(jCfg.Metrics(metrics.NullFactory))
	if err != nil {
		return nil, nil, fmt.Errorf("jaeger tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}
