// Package prometheus provides Prometheus metrics exporters for VoiceKit sessions.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "voicekit"

var (
	// sessionsActive is a gauge of sessions whose control channel is open.
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active sessions",
		},
	)

	// sessionDuration is a histogram of session lifetimes by end reason.
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Histogram of session duration in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		},
		[]string{"reason"}, // reason: user, watchdog, connection
	)

	// sessionSetupDuration is a histogram of time from Start to an open control channel.
	sessionSetupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_setup_duration_seconds",
			Help:      "Time from session start until the control channel opened",
			Buckets:   []float64{.1, .25, .5, 1, 2, 4, 8, 15},
		},
	)

	// startupFailuresTotal is a counter of rolled back starts by stage.
	startupFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "startup_failures_total",
			Help:      "Total number of failed session starts",
		},
		[]string{"stage"}, // stage: media, credential, connect, configure
	)

	// inboundEventsTotal is a counter of inbound control messages by type.
	inboundEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Total number of inbound control messages",
		},
		[]string{"type"},
	)

	// protocolErrorsTotal is a counter of undecodable inbound messages.
	protocolErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_parse_errors_total",
			Help:      "Total number of inbound messages that could not be decoded",
		},
	)

	// serverErrorsTotal is a counter of errors reported by the endpoint.
	serverErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_errors_total",
			Help:      "Total number of error events reported by the endpoint",
		},
		[]string{"code"},
	)

	// toolCallDuration is a histogram of tool call duration.
	toolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool calls in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"tool"},
	)

	// toolCallsTotal is a counter of tool calls.
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls",
		},
		[]string{"tool", "status"}, // status: success, error, unknown
	)

	// watchdogTerminationsTotal is a counter of sessions ended for inactivity.
	watchdogTerminationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watchdog_terminations_total",
			Help:      "Total number of sessions ended by the inactivity watchdog",
		},
	)

	// turnsTotal is a counter of finalized transcript turns.
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of finalized transcript turns",
		},
		[]string{"role"},
	)

	// tokensTotal is a counter of tokens reported in response.done usage.
	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Total tokens reported by the endpoint",
		},
		[]string{"type"}, // type: input, output
	)

	// issuerRequestsTotal is a counter of token issuer requests by result.
	issuerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issuer_requests_total",
			Help:      "Total number of session token requests served",
		},
		[]string{"result"}, // result: issued, rate_limited, bad_request, upstream_error
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		sessionsActive,
		sessionDuration,
		sessionSetupDuration,
		startupFailuresTotal,
		inboundEventsTotal,
		protocolErrorsTotal,
		serverErrorsTotal,
		toolCallDuration,
		toolCallsTotal,
		watchdogTerminationsTotal,
		turnsTotal,
		tokensTotal,
		issuerRequestsTotal,
	}
)

// RecordSessionStart records a session whose control channel opened.
func RecordSessionStart(setupSeconds float64) {
	sessionsActive.Inc()
	sessionSetupDuration.Observe(setupSeconds)
}

// RecordSessionEnd records a session returning to idle.
func RecordSessionEnd(reason string, durationSeconds float64) {
	sessionsActive.Dec()
	sessionDuration.WithLabelValues(reason).Observe(durationSeconds)
	if reason == reasonWatchdog {
		watchdogTerminationsTotal.Inc()
	}
}

// RecordStartupFailure records a rolled back start.
func RecordStartupFailure(stage string) {
	startupFailuresTotal.WithLabelValues(stage).Inc()
}

// RecordInboundEvent records one inbound control message.
func RecordInboundEvent(messageType string) {
	if messageType == "" {
		messageType = "unknown"
	}
	inboundEventsTotal.WithLabelValues(messageType).Inc()
}

// RecordProtocolError records an undecodable inbound message.
func RecordProtocolError() {
	protocolErrorsTotal.Inc()
}

// RecordServerError records an endpoint error event.
func RecordServerError(code string) {
	if code == "" {
		code = "unknown"
	}
	serverErrorsTotal.WithLabelValues(code).Inc()
}

// RecordToolCall records a tool call.
func RecordToolCall(toolName, status string, durationSeconds float64) {
	toolCallDuration.WithLabelValues(toolName).Observe(durationSeconds)
	toolCallsTotal.WithLabelValues(toolName, status).Inc()
}

// RecordTurn records a finalized transcript turn.
func RecordTurn(role string) {
	turnsTotal.WithLabelValues(role).Inc()
}

// RecordTokens records token usage.
func RecordTokens(inputTokens, outputTokens int) {
	if inputTokens > 0 {
		tokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		tokensTotal.WithLabelValues("output").Add(float64(outputTokens))
	}
}

// RecordIssuerResult records one token issuer request. It matches the
// credentials.HandlerConfig OnResult signature.
func RecordIssuerResult(result string) {
	issuerRequestsTotal.WithLabelValues(result).Inc()
}
