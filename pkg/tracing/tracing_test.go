package tracing

import (
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/stretchr/testify/require"
)

func TestSampler(t *testing.T) {
	require.Equal(t, "const", Config{}.sampler().Type)
	require.Equal(t, "const", Config{SampleRate: 1}.sampler().Type)

	s := Config{SampleRate: 0.25}.sampler()
	require.Equal(t, "probabilistic", s.Type)
	require.Equal(t, 0.25, s.Param)
}

func TestInitTracerRequiresHost(t *testing.T) {
	_, _, err := InitTracer(Config{Port: 6831})
	require.Error(t, err)
}

func TestInitTracerSetsGlobal(t *testing.T) {
	prev := opentracing.GlobalTracer()
	t.Cleanup(func() { opentracing.SetGlobalTracer(prev) })
	old := SetServiceName("tracing-test")
	t.Cleanup(func() { SetServiceName(old) })

	tracer, closer, err := InitTracer(Config{Host: "127.0.0.1", Port: 6831})
	require.NoError(t, err)
	require.Same(t, tracer, opentracing.GlobalTracer())

	tracer.StartSpan("noop").Finish()
	require.NoError(t, closer.Close())
}
