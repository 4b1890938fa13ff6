package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mohmed402/wasel/internal/cart"
	"github.com/mohmed402/wasel/internal/ratelimit"
)

type ScrapeRequest struct {
	CartShareURL string `json:"cartShareUrl"`
}

type ScrapeResponse struct {
	Source         string                `json:"source"`
	SourceAPIURL   string                `json:"sourceApiUrl,omitempty"`
	ProvenanceTier cart.Tier             `json:"provenanceTier"`
	Count          int                   `json:"count"`
	Items          []cart.NormalizedItem `json:"items"`
	Metadata       cart.Metadata         `json:"metadata"`
	CapturedAt     time.Time             `json:"capturedAt"`
}

type ScrapeNotFound struct {
	Error string      `json:"error"`
	Debug ScrapeDebug `json:"debug"`
}

type ScrapeDebug struct {
	CapturedCount int      `json:"capturedCount"`
	CapturedURLs  []string `json:"capturedUrls"`
	SampleKeys    []string `json:"sampleKeys"`
}

type ScrapeStatus struct {
	Available bool   `json:"available"`
	Engine    string `json:"engine"`
	Error     string `json:"error,omitempty"`
}

// Scrape extracts the items behind a cart share link.
func (h *Handlers) Scrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.CartShareURL) == "" {
		h.respondError(w, http.StatusBadRequest, "cartShareUrl is required")
		return
	}

	result, err := h.Extractor.Extract(r.Context(), req.CartShareURL)
	if err != nil {
		h.respondScrapeError(w, err, req.CartShareURL)
		return
	}

	if result.Empty() {
		h.respondJSON(w, http.StatusNotFound, ScrapeNotFound{
			Error: "no cart items found",
			Debug: ScrapeDebug{
				CapturedCount: result.Diagnostics.CapturedCount,
				CapturedURLs:  nonNil(result.Diagnostics.CapturedURLs),
				SampleKeys:    nonNil(result.Diagnostics.SampleKeys),
			},
		})
		return
	}

	resp := ScrapeResponse{
		Source:         result.Source,
		ProvenanceTier: result.Tier,
		Count:          len(result.Items),
		Items:          result.Items,
		Metadata:       result.Metadata,
		CapturedAt:     result.CapturedAt,
	}
	if result.Tier == cart.TierNetwork {
		resp.SourceAPIURL = result.SourceDescriptor
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) respondScrapeError(w http.ResponseWriter, err error, cartURL string) {
	switch {
	case errors.Is(err, cart.ErrInvalidCartURL):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ratelimit.ErrBusy):
		w.Header().Set("Retry-After", "30")
		h.respondError(w, http.StatusServiceUnavailable, "extraction capacity exhausted, retry shortly")
	case errors.Is(err, cart.ErrBrowserUnavailable),
		errors.Is(err, cart.ErrLaunchFailure),
		errors.Is(err, cart.ErrNavigationFailure):
		h.logger.Error("extraction failed", "cart_url", cartURL, "error", err)
		h.respondError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Error("extraction timed out", "cart_url", cartURL, "error", err)
		h.respondError(w, http.StatusGatewayTimeout, "extraction timed out")
	default:
		h.logger.Error("extraction failed", "cart_url", cartURL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "extraction failed")
	}
}

// ScrapeStatus reports whether the browser engine can start.
func (h *Handlers) ScrapeStatus(w http.ResponseWriter, r *http.Request) {
	status := ScrapeStatus{Available: true, Engine: "playwright"}
	code := http.StatusOK

	if h.Browser != nil {
		if err := h.Browser.Available(r.Context()); err != nil {
			status.Available = false
			status.Error = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, code, status)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
