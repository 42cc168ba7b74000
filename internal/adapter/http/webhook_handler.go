package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aq2208/gorder-inventory/internal/usecase"
	"github.com/gin-gonic/gin"
)

const (
	HeaderSignature          = "X-Signature"
	HeaderSignatureTimestamp = "X-Signature-Timestamp"

	maxWebhookBody = 1 << 20
)

type paymentApplier interface {
	VerifyAndApply(ctx context.Context, raw []byte, timestamp, signature string) (usecase.AppliedResult, error)
}

// Signer produces signatures for the local test helper route.
type Signer interface {
	Sign(timestamp string, body []byte) string
}

type WebhookHandler struct {
	webhook paymentApplier
	signer  Signer
	timeout time.Duration
	now     func() time.Time
}

// NewWebhookHandler builds the payment webhook endpoint. signer may be nil;
// the signing helper is then not exposed.
func NewWebhookHandler(webhook paymentApplier, signer Signer, timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{webhook: webhook, signer: signer, timeout: timeout, now: time.Now}
}

// Payment verifies the signature over the raw bytes, so the body is read as
// is and never re-encoded.
func (h *WebhookHandler) Payment(c *gin.Context) {
	raw, ok := h.readBody(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.webhook.VerifyAndApply(ctx, raw, c.GetHeader(HeaderSignatureTimestamp), c.GetHeader(HeaderSignature))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"detail": "ok",
		"order":  gin.H{"id": res.OrderID, "status": res.Status},
	})
}

// SignForTest returns a timestamp and signature for the posted body. Dev only.
func (h *WebhookHandler) SignForTest(c *gin.Context) {
	raw, ok := h.readBody(c)
	if !ok {
		return
	}
	ts := strconv.FormatInt(h.now().Unix(), 10)
	c.JSON(http.StatusOK, gin.H{
		"timestamp": ts,
		"signature": h.signer.Sign(ts, raw),
	})
}

func (h *WebhookHandler) readBody(c *gin.Context) ([]byte, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "Payload too large"})
			return nil, false
		}
		writeError(c, err)
		return nil, false
	}
	return raw, true
}
