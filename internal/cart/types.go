package cart

import "time"

// Tier identifies which extraction strategy produced a result.
type Tier string

const (
	TierNetwork Tier = "network"
	TierInline  Tier = "inline_state"
	TierDOM     Tier = "dom"
	TierNone    Tier = "none"
)

// Source labels reported to clients.
const (
	SourceAPIResponse   = "api_response"
	SourcePageContent   = "page_content"
	SourceDOMExtraction = "dom_extraction"
)

// CapturedResponse is a network payload the interceptor judged to be a
// plausible cart.
type CapturedResponse struct {
	SourceURL     string
	Items         []any
	ItemsPath     string
	ItemCount     int
	HasProperties bool
	Score         int
	CapturedAt    time.Time
	seq           int
}

// NormalizedItem is the uniform record returned to clients. Missing fields
// are nil rather than empty strings; Images is never nil.
type NormalizedItem struct {
	ProductID *string        `json:"productId"`
	SKU       *string        `json:"sku"`
	Name      *string        `json:"name"`
	Price     *float64       `json:"price"`
	Currency  string         `json:"currency"`
	Quantity  int            `json:"qty"`
	Image     *string        `json:"image"`
	Images    []string       `json:"images"`
	Variant   *string        `json:"variant"`
	Raw       map[string]any `json:"raw"`
}

// Metadata is parsed from the share link query string.
type Metadata struct {
	GroupID  string `json:"groupId,omitempty"`
	Country  string `json:"country,omitempty"`
	Language string `json:"language,omitempty"`
}

// Diagnostics describes what the interceptor saw, for failed extractions.
type Diagnostics struct {
	CapturedCount int      `json:"capturedCount"`
	CapturedURLs  []string `json:"capturedUrls"`
	SampleKeys    []string `json:"sampleKeys"`
	AcceptedCount int      `json:"acceptedCount"`
}

// Result is the outcome of one extraction run.
type Result struct {
	CartURL          string           `json:"cartUrl"`
	Items            []NormalizedItem `json:"items"`
	Tier             Tier             `json:"provenanceTier"`
	Source           string           `json:"source,omitempty"`
	SourceDescriptor string           `json:"sourceDescriptor,omitempty"`
	CapturedAt       time.Time        `json:"capturedAt"`
	Duration         time.Duration    `json:"-"`
	Metadata         Metadata         `json:"metadata"`
	Diagnostics      Diagnostics      `json:"debug"`
}

// Empty reports whether the run produced no items.
func (r *Result) Empty() bool {
	return r == nil || len(r.Items) == 0
}
