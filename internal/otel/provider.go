// Package otel exports the extension's slog records through OpenTelemetry,
// to the session log file and optionally to an OTLP collector.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/killindicator/extension/internal/config"
)

const defaultServiceName = "killindicator"

// Provider owns the log pipeline. The zero value and a disabled provider
// are no-ops.
type Provider struct {
	logs    *sdklog.LoggerProvider
	service string
}

// New builds the pipeline described by cfg. Records go to file when it is
// set and to cfg.Endpoint when that is set; at least one is required.
func New(cfg config.OTelConfig, file io.Writer, version string) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}
	service := cfg.ServiceName
	if service == "" {
		service = defaultServiceName
	}

	ctx := context.Background()
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(service),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	if file != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(file), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		opts = append(opts, sdklog.WithProcessor(batch(exp, cfg)))
	}
	if cfg.Endpoint != "" {
		exp, err := otlpExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdklog.WithProcessor(batch(exp, cfg)))
	}
	if len(opts) == 1 {
		return nil, errors.New("otel enabled without a log file or endpoint")
	}

	return &Provider{logs: sdklog.NewLoggerProvider(opts...), service: service}, nil
}

func otlpExporter(ctx context.Context, cfg config.OTelConfig) (sdklog.Exporter, error) {
	o := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		o = append(o, otlploghttp.WithInsecure())
	}
	exp, err := otlploghttp.New(ctx, o...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}
	return exp, nil
}

func batch(exp sdklog.Exporter, cfg config.OTelConfig) sdklog.Processor {
	var o []sdklog.BatchProcessorOption
	if cfg.BatchTimeout > 0 {
		o = append(o, sdklog.WithExportTimeout(cfg.BatchTimeout))
	}
	return sdklog.NewBatchProcessor(exp, o...)
}

// LoggerProvider feeds the otelslog bridge. Nil when disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logs
}

// Service is the service.name records are tagged with.
func (p *Provider) Service() string {
	return p.service
}

// Enabled reports whether records are exported.
func (p *Provider) Enabled() bool {
	return p.logs != nil
}

// Flush exports pending records. :FLUSH: calls it so the session log is
// complete before the host reads it.
func (p *Provider) Flush(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.ForceFlush(ctx); err != nil {
		return fmt.Errorf("log flush failed: %w", err)
	}
	return nil
}

// Shutdown flushes and stops every exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.Shutdown(ctx); err != nil {
		return fmt.Errorf("log shutdown failed: %w", err)
	}
	return nil
}
