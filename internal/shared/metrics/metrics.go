package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	clientsCreatedTotal   atomic.Uint64
	verificationsTotal    = map[string]*atomic.Uint64{VerifyOK: {}, VerifyInvalid: {}, VerifyNotFound: {}}
	requestsCreatedTotal  atomic.Uint64
	requestsRejectedTotal atomic.Uint64
	requestsDeletedTotal  atomic.Uint64
	uploadsCompletedTotal atomic.Uint64
	uploadsRejectedTotal  atomic.Uint64
	documentsStoredTotal  atomic.Uint64
	mailSentTotal         atomic.Uint64
	mailFailedTotal       atomic.Uint64
	uploadSizeBytes       = newHistogram([]float64{64 << 10, 256 << 10, 1 << 20, 4 << 20, 16 << 20, 64 << 20})
)

// Verification outcomes.
const (
	VerifyOK       = "verified"
	VerifyInvalid  = "invalid"
	VerifyNotFound = "not_found"
)

func IncClientsCreated()   { clientsCreatedTotal.Add(1) }
func IncRequestsCreated()  { requestsCreatedTotal.Add(1) }
func IncRequestsRejected() { requestsRejectedTotal.Add(1) }
func IncRequestsDeleted()  { requestsDeletedTotal.Add(1) }
func IncUploadsCompleted() { uploadsCompletedTotal.Add(1) }
func IncUploadsRejected()  { uploadsRejectedTotal.Add(1) }

// IncVerification counts an email verification attempt by outcome.
func IncVerification(outcome string) {
	if c, ok := verificationsTotal[outcome]; ok {
		c.Add(1)
	}
}

// IncMail counts a mail delivery attempt.
func IncMail(err error) {
	if err != nil {
		mailFailedTotal.Add(1)
		return
	}
	mailSentTotal.Add(1)
}

// ObserveDocumentStored records one stored upload and its size.
func ObserveDocumentStored(sizeBytes int64) {
	documentsStoredTotal.Add(1)
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	uploadSizeBytes.Observe(float64(sizeBytes))
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "clients_created_total", "Clients registered by RMs", clientsCreatedTotal.Load())
	fmt.Fprintf(&buf, "# HELP email_verifications_total Email verification attempts by outcome\n")
	fmt.Fprintf(&buf, "# TYPE email_verifications_total counter\n")
	for _, outcome := range []string{VerifyOK, VerifyInvalid, VerifyNotFound} {
		fmt.Fprintf(&buf, "email_verifications_total{outcome=%q} %d\n", outcome, verificationsTotal[outcome].Load())
	}
	writeCounter(&buf, "document_requests_created_total", "Document requests issued", requestsCreatedTotal.Load())
	writeCounter(&buf, "document_requests_rejected_total", "Document requests refused for unverified clients", requestsRejectedTotal.Load())
	writeCounter(&buf, "document_requests_deleted_total", "Document requests deleted by RMs", requestsDeletedTotal.Load())
	writeCounter(&buf, "uploads_completed_total", "Upload submissions accepted", uploadsCompletedTotal.Load())
	writeCounter(&buf, "uploads_rejected_total", "Upload submissions failing validation", uploadsRejectedTotal.Load())
	writeCounter(&buf, "documents_stored_total", "Uploaded documents persisted", documentsStoredTotal.Load())
	writeCounter(&buf, "mail_sent_total", "Emails handed to the mail transport", mailSentTotal.Load())
	writeCounter(&buf, "mail_failed_total", "Emails rejected by the mail transport", mailFailedTotal.Load())
	writeHistogram(&buf, "upload_size_bytes", "Size of stored uploads in bytes", uploadSizeBytes.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe counts value in the first bucket whose bound holds it; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
