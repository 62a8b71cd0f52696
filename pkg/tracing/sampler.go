package tracing

import (
	"os"
	"strconv"

	"go.opentelemetry.io/otel/sdk/trace"
)

// newSampler OTEL_TRACES_SAMPLER 优先于配置
func newSampler(cfg *Config) trace.Sampler {
	if name := os.Getenv("OTEL_TRACES_SAMPLER"); name != "" {
		return samplerFromEnv(name, envSamplingRatio())
	}

	switch cfg.SamplingType {
	case "always":
		return trace.AlwaysSample()
	case "never":
		return trace.NeverSample()
	case "ratio":
		return trace.TraceIDRatioBased(cfg.SamplingRate)
	default:
		return trace.ParentBased(trace.TraceIDRatioBased(cfg.SamplingRate))
	}
}

func samplerFromEnv(name string, ratio float64) trace.Sampler {
	samplers := map[string]func() trace.Sampler{
		"always_on":                func() trace.Sampler { return trace.AlwaysSample() },
		"always_off":               func() trace.Sampler { return trace.NeverSample() },
		"traceidratio":             func() trace.Sampler { return trace.TraceIDRatioBased(ratio) },
		"parentbased_always_off":   func() trace.Sampler { return trace.ParentBased(trace.NeverSample()) },
		"parentbased_traceidratio": func() trace.Sampler { return trace.ParentBased(trace.TraceIDRatioBased(ratio)) },
	}
	if fn, ok := samplers[name]; ok {
		return fn()
	}
	return trace.ParentBased(trace.AlwaysSample())
}

// envSamplingRatio 读取 OTEL_TRACES_SAMPLER_ARG，非法时为 1
func envSamplingRatio() float64 {
	ratio, err := strconv.ParseFloat(os.Getenv("OTEL_TRACES_SAMPLER_ARG"), 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 1.0
	}
	return ratio
}
