// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UploadsTotal counts accepted uploads by outcome.
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidserve_uploads_total",
		Help: "Total number of upload requests by result",
	}, []string{"result"})

	// StreamBytesServed counts media bytes served through range responses.
	StreamBytesServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidserve_stream_bytes_served_total",
		Help: "Total media bytes served via partial-content responses",
	})

	// SegmentRequestsTotal counts HLS resource requests by kind and status.
	SegmentRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidserve_hls_requests_total",
		Help: "Total HLS playlist and segment requests by kind and status",
	}, []string{"kind", "status"})
)

// RecordUpload counts an upload attempt: "rejected" for invalid requests,
// "failure" for storage or persistence errors, "success" otherwise.
func RecordUpload(result string) {
	UploadsTotal.WithLabelValues(result).Inc()
}

// AddStreamBytes counts bytes written to a streaming response.
func AddStreamBytes(n int64) {
	StreamBytesServed.Add(float64(n))
}

// RecordHLSRequest counts a playlist or segment request.
func RecordHLSRequest(kind, status string) {
	SegmentRequestsTotal.WithLabelValues(kind, status).Inc()
}
