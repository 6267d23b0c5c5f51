package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/incosense/incosense/internal/domain"
	"github.com/incosense/incosense/internal/metrics"
	"github.com/incosense/incosense/internal/pkg/httputil"
	"github.com/incosense/incosense/internal/pkg/logger"
	"github.com/incosense/incosense/internal/service/subscription"
	"github.com/incosense/incosense/internal/strictform"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	svc     *subscription.Service
	metrics *metrics.Metrics
	log     *logger.Logger
}

// NewHandlers creates handlers for svc. m may be nil.
func NewHandlers(svc *subscription.Service, m *metrics.Metrics, log *logger.Logger) *Handlers {
	if log == nil {
		log = logger.Default()
	}
	return &Handlers{svc: svc, metrics: m, log: log}
}

var outcomeStatus = map[subscription.Outcome]int{
	subscription.OutcomeCreated:                http.StatusCreated,
	subscription.OutcomeReadBody:               http.StatusBadRequest,
	subscription.OutcomePayloadTooLarge:        http.StatusRequestEntityTooLarge,
	subscription.OutcomeInvalidPercentEncoding: http.StatusBadRequest,
	subscription.OutcomeInvalidUTF8:            http.StatusUnprocessableEntity,
	subscription.OutcomeTooManyFields:          http.StatusBadRequest,
	subscription.OutcomeInvalidFormStructure:   http.StatusBadRequest,
	subscription.OutcomeInvalidField:           http.StatusBadRequest,
	subscription.OutcomeConflict:               http.StatusConflict,
	subscription.OutcomeReferential:            http.StatusBadRequest,
	subscription.OutcomeStorage:                http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for an outcome.
func StatusFor(o subscription.Outcome) int {
	if s, ok := outcomeStatus[o]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Root answers GET /.
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	httputil.Text(w, http.StatusOK, "Hello, world!")
}

// HealthCheck answers GET /healthcheck with an empty 200.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.Empty(w, http.StatusOK)
}

// PostSubscription handles POST /subscriptions.
//
// A declared Content-Length above the cap is rejected before the body is
// touched. Otherwise the body is streamed into the service, which reads at
// most one byte past the cap.
func (h *Handlers) PostSubscription(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	limits := h.svc.Limits()

	var err error
	if r.ContentLength > limits.MaxBodyBytes {
		err = &strictform.Rejection{
			Kind:   strictform.KindPayloadTooLarge,
			Detail: fmt.Sprintf("body exceeds %d bytes", limits.MaxBodyBytes),
		}
	} else {
		body := http.MaxBytesReader(w, r.Body, limits.MaxBodyBytes+1)
		_, err = h.svc.Subscribe(r.Context(), body)
	}

	outcome := subscription.Classify(err)
	status := StatusFor(outcome)
	h.metrics.ObserveSubmission(string(outcome), time.Since(start), r.ContentLength)

	log := h.log.With("request_id", middleware.GetReqID(r.Context()), "outcome", string(outcome))
	switch {
	case outcome == subscription.OutcomeCreated:
		log.Info("subscription created")
		httputil.Created(w)
	case status >= http.StatusInternalServerError:
		respondSafeError(w, log, status, err)
	default:
		log.Info("subscription rejected", "detail", describe(outcome, err))
		httputil.Text(w, status, describe(outcome, err))
	}
}

// describe renders the short machine-debuggable body for a rejection.
func describe(outcome subscription.Outcome, err error) string {
	var rej *strictform.Rejection
	if errors.As(err, &rej) {
		return rej.Error()
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return "InvalidField: " + verr.Error()
	}
	switch outcome {
	case subscription.OutcomeConflict:
		return "Conflict: subscriber already exists"
	case subscription.OutcomeReferential:
		return "Referential: subscription references missing data"
	}
	return safeErrorMessage(StatusFor(outcome), err)
}
