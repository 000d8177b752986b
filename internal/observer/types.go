package observer

import (
	"net/http"
	"strings"

	"apiscope/internal/probe"
)

// MeasurementResult is what one timed request to an adapter produced.
// Pointer fields are nil when the request failed.
type MeasurementResult struct {
	Duration   *float64
	TTFB       *float64
	Payload    []byte
	Count      int
	Size       *int64
	StatusCode *int
	Headers    map[string]string
	Error      string
	Success    bool
}

// ProtocolSample is the persisted per-adapter part of a SampleRecord.
type ProtocolSample struct {
	Duration   *float64          `json:"duration"`
	TTFB       *float64          `json:"ttfb"`
	Count      int               `json:"count"`
	Size       *int64            `json:"size"`
	StatusCode *int              `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Error      string            `json:"error,omitempty"`
	Success    bool              `json:"success"`
	CPUPercent float64           `json:"cpu_percent"`
	MemoryMB   float64           `json:"memory_mb"`
}

// SampleRecord is one round of observation. Once appended to the result log it
// is never changed.
type SampleRecord struct {
	Timestamp        string              `json:"timestamp"`
	REST             ProtocolSample      `json:"rest"`
	GraphQL          ProtocolSample      `json:"graphql"`
	System           probe.SystemMetrics `json:"system"`
	ScalabilityUsers int                 `json:"scalability_users"`
}

func newProtocolSample(m MeasurementResult, pm probe.ProcessMetrics) ProtocolSample {
	headers := m.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	return ProtocolSample{
		Duration:   m.Duration,
		TTFB:       m.TTFB,
		Count:      m.Count,
		Size:       m.Size,
		StatusCode: m.StatusCode,
		Headers:    headers,
		Error:      m.Error,
		Success:    m.Success,
		CPUPercent: pm.CPUPercent,
		MemoryMB:   pm.MemoryMB,
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}
