// Package webhook receives provider settlement callbacks and flips orders to
// paid exactly once. Nothing in here trusts the payload before the signature
// checks out.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marc100s/store-core/internal/domain"
	"github.com/marc100s/store-core/internal/money"
	"github.com/marc100s/store-core/internal/repository"
)

const (
	// SignatureHeader carries `t=<unix>,v1=<hex hmac>` over `<t>.<body>`.
	SignatureHeader = "Stripe-Signature"

	maxBodyBytes     = 1 << 16
	defaultTolerance = 5 * time.Minute
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// OrderMarker is the one store operation the handler needs: a
// compare-and-set paid transition that reports whether it actually flipped.
type OrderMarker interface {
	MarkPaid(ctx context.Context, orderID uuid.UUID, result domain.PaymentResult, paidAt time.Time) (bool, error)
}

type Handler struct {
	secret    []byte
	orders    OrderMarker
	tolerance time.Duration
	now       func() time.Time
}

func NewHandler(secret string, orders OrderMarker) *Handler {
	return &Handler{
		secret:    []byte(secret),
		orders:    orders,
		tolerance: defaultTolerance,
		now:       time.Now,
	}
}

type event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID           string            `json:"id"`
			Amount       int64             `json:"amount"`
			Currency     string            `json:"currency"`
			Metadata     map[string]string `json:"metadata"`
			ReceiptEmail string            `json:"receipt_email"`
		} `json:"object"`
	} `json:"data"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if err := h.verify(body, r.Header.Get(SignatureHeader)); err != nil {
		log.Printf("webhook rejected: %v", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var ev event
	if err := json.Unmarshal(body, &ev); err != nil {
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	switch ev.Type {
	case "charge.succeeded", "payment_intent.succeeded":
		h.handleSucceeded(w, r, &ev)
	default:
		// Acknowledge everything else so the provider stops redelivering.
		log.Printf("webhook ignored: event %s type %s", ev.ID, ev.Type)
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) handleSucceeded(w http.ResponseWriter, r *http.Request, ev *event) {
	orderID, err := uuid.Parse(ev.Data.Object.Metadata["order_id"])
	if err != nil {
		log.Printf("webhook: event %s has no usable order_id metadata", ev.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	result := domain.PaymentResult{
		ProviderRef: ev.Data.Object.ID,
		Status:      domain.PaymentStatusCompleted,
		PayerEmail:  ev.Data.Object.ReceiptEmail,
		AmountPaid:  money.FromCents(ev.Data.Object.Amount),
	}

	transitioned, err := h.orders.MarkPaid(r.Context(), orderID, result, h.now().UTC())
	if errors.Is(err, repository.ErrOrderNotFound) {
		// Nothing to retry against; ack so the provider gives up.
		log.Printf("webhook: event %s references unknown order %s", ev.ID, orderID)
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		log.Printf("webhook: marking order %s paid failed: %v", orderID, err)
		http.Error(w, "storage failure", http.StatusInternalServerError)
		return
	}

	if !transitioned {
		log.Printf("webhook: order %s already paid, event %s is a redelivery", orderID, ev.ID)
	}
	w.WriteHeader(http.StatusOK)
}

// verify checks the timestamped HMAC in constant time and enforces the
// tolerance window against replayed captures.
func (h *Handler) verify(body []byte, header string) error {
	if header == "" {
		return fmt.Errorf("%w: missing header", ErrInvalidSignature)
	}

	var timestamp int64
	var signatures [][]byte
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(v)
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return fmt.Errorf("%w: incomplete header", ErrInvalidSignature)
	}

	age := h.now().Sub(time.Unix(timestamp, 0))
	if age > h.tolerance || age < -h.tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := Sign(h.secret, timestamp, body)
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching signature", ErrInvalidSignature)
}

// Sign computes the signature for a timestamped payload. Exported for test
// fixtures and for outbound signing in tools.
func Sign(secret []byte, timestamp int64, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return mac.Sum(nil)
}
