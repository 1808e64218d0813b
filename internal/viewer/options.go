package viewer

import (
	"golang.org/x/text/language"

	"myoview/internal/persistence"
	"myoview/internal/selection"
)

// Option configures a Service.
type Option func(*Service)

// WithGateway wires durable storage and the export archive.
func WithGateway(g *persistence.Gateway) Option {
	return func(s *Service) { s.gateway = g }
}

// WithPalette overrides the material palette.
func WithPalette(p selection.Palette) Option {
	return func(s *Service) { s.palette = p }
}

// WithPulse configures the selection pulse.
func WithPulse(p selection.Pulse) Option {
	return func(s *Service) { s.pulse = p }
}

// WithLocale sets the collation locale for sidebar rows.
func WithLocale(tag language.Tag) Option {
	return func(s *Service) { s.locale = tag }
}

// WithLogger installs a structured logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder installs a metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides wall time.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}
