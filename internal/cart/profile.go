package cart

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// Profile is the site knowledge the pipeline runs against. Swapping the
// profile retargets the pipeline at another storefront.
type Profile struct {
	Version          string          `json:"version"`
	Domain           string          `json:"domain"`
	SharePathPattern string          `json:"sharePathPattern"`
	Denylist         []string        `json:"denylist"`
	ItemPaths        []string        `json:"itemPaths"`
	ProductKeys      []string        `json:"productKeys"`
	IdentifierKeys   []string        `json:"identifierKeys"`
	DecoyKeys        []string        `json:"decoyKeys"`
	Fields           FieldRules      `json:"fields"`
	InlinePatterns   []InlinePattern `json:"inlinePatterns"`
	DOM              DOMRules        `json:"dom"`
	APICurrency      string          `json:"apiCurrency"`
	DOMCurrency      string          `json:"domCurrency"`
	Tuning           Tuning          `json:"-"`
}

// FieldRules lists, per output field, the dotted paths tried in order.
type FieldRules struct {
	ProductID []string `json:"productId"`
	SKU       []string `json:"sku"`
	Name      []string `json:"name"`
	Price     []string `json:"price"`
	Currency  []string `json:"currency"`
	Quantity  []string `json:"quantity"`
	Image     []string `json:"image"`
	Images    []string `json:"images"`
	Variant   []string `json:"variant"`
}

// Inline pattern kinds.
const (
	PatternAssignment = "assignment"
	PatternIsland     = "island"
	PatternFragment   = "fragment"
)

// InlinePattern locates embedded state in rendered HTML. For assignment and
// fragment kinds Expr is a regular expression whose match ends where the
// JSON value begins; for island kind it is a CSS selector for a script tag.
type InlinePattern struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Expr string `json:"expr"`
}

// SelectorRule is one step of the DOM selector cascade.
type SelectorRule struct {
	Selector   string  `json:"selector"`
	Confidence float64 `json:"confidence"`
}

type DOMRules struct {
	Selectors          []SelectorRule `json:"selectors"`
	ScanTokens         []string       `json:"scanTokens"`
	ScanPartSuffixes   []string       `json:"scanPartSuffixes"`
	ScanAttrs          []string       `json:"scanAttrs"`
	FuzzyThreshold     float64        `json:"fuzzyThreshold"`
	IDAttrs            []string       `json:"idAttrs"`
	ProductURLPattern  string         `json:"productUrlPattern"`
	NameSelectors      []string       `json:"nameSelectors"`
	NameAttrs          []string       `json:"nameAttrs"`
	PriceSelectors     []string       `json:"priceSelectors"`
	PriceAttrs         []string       `json:"priceAttrs"`
	QuantitySelectors  []string       `json:"quantitySelectors"`
	QuantityAttrs      []string       `json:"quantityAttrs"`
	VariantSelectors   []string       `json:"variantSelectors"`
	GallerySelectors   []string       `json:"gallerySelectors"`
	LazyAttrs          []string       `json:"lazyAttrs"`
	PlaceholderMarkers []string       `json:"placeholderMarkers"`
}

// Tuning holds the empirically chosen waits and limits.
type Tuning struct {
	NavigationTimeout  time.Duration
	NetworkIdleTimeout time.Duration
	SettleDelay        time.Duration
	ScrollCycles       int
	ScrollDelay        time.Duration
	MaterializeSteps   int
	MaterializeDelay   time.Duration
	DrainTimeout       time.Duration
	PropertyWeight     int
	MaxCandidates      int
	MaxBodyBytes       int
	MaxRejected        int
	SearchDepth        int
}

// DefaultTuning returns the settle protocol used against the live site.
func DefaultTuning() Tuning {
	return Tuning{
		NavigationTimeout:  60 * time.Second,
		NetworkIdleTimeout: 30 * time.Second,
		SettleDelay:        5 * time.Second,
		ScrollCycles:       3,
		ScrollDelay:        2 * time.Second,
		MaterializeSteps:   6,
		MaterializeDelay:   400 * time.Millisecond,
		DrainTimeout:       10 * time.Second,
		PropertyWeight:     10,
		MaxCandidates:      20,
		MaxBodyBytes:       8 << 20,
		MaxRejected:        25,
		SearchDepth:        8,
	}
}

// DefaultProfile returns the profile for the SHEIN storefront.
func DefaultProfile() Profile {
	return Profile{
		Version:          "shein-2024.3",
		Domain:           "shein.com",
		SharePathPattern: `(?i)(/cart/share|/share/cart|/cart-share|sharejump|share_type=cart)`,
		Denylist: []string{
			"/campaignsTinyUrlList",
			"/tracking/",
			"/analytics/",
			"/log/",
			"/beacon",
		},
		ItemPaths: []string{
			"data.cart.items",
			"data.cart.goods_list",
			"data.cartInfo.carts",
			"data.info.carts",
			"info.carts",
			"info.goods_list",
			"result.list.items",
			"result.items",
			"data.items",
			"data.goodsList",
			"data.goods_list",
			"data.list",
			"data.products",
			"cartInfo.carts",
			"cart.items",
			"goodsList",
			"goods_list",
			"carts",
			"items",
			"products",
			"list",
		},
		ProductKeys: []string{
			"goods_id", "goodsId", "productId", "product_id", "sku", "goods_sn", "skuCode",
			"goods_name", "goodsName", "productName", "name",
			"price", "sale_price", "salePrice", "retail_price", "retailPrice",
			"goods_img", "goods_image", "image", "imageUrl", "img",
		},
		IdentifierKeys: []string{
			"goods_id", "goodsId", "productId", "product_id", "sku", "goods_sn", "skuCode", "spu",
		},
		DecoyKeys: []string{"tinyUrl"},
		Fields: FieldRules{
			ProductID: []string{"goods_id", "goodsId", "productId", "product_id", "product.goods_id", "product.productId", "id"},
			SKU:       []string{"sku", "goods_sn", "goodsSn", "skuCode", "sku_code", "product.goods_sn", "product.sku"},
			Name:      []string{"goods_name", "name", "title", "goodsName", "productName", "product.goods_name", "product.goodsName"},
			Price: []string{
				"sale_price.amount", "salePrice.amount", "price.amount", "retail_price.amount", "retailPrice.amount",
				"product.sale_price.amount", "product.salePrice.amount", "product.retail_price.amount",
				"sale_price", "salePrice", "unit_price", "unitPrice", "price", "retail_price", "amount",
			},
			Currency: []string{
				"sale_price.currency", "salePrice.currency", "price.currency", "retail_price.currency",
				"product.sale_price.currency", "currency", "currency_code", "currencyCode",
			},
			Quantity: []string{"quantity", "qty", "goods_num", "num", "count", "product.quantity"},
			Image:    []string{"goods_img", "goods_image", "image", "img", "imageUrl", "image_url", "goods_thumb", "thumbnail", "product.goods_img"},
			Images:   []string{"images", "goods_imgs", "detail_image", "imageList", "image_list", "product.detail_image"},
			Variant: []string{
				"attr_value_en", "attr_value", "variant", "goods_attr", "sku_attr", "attr",
				"product.sku_sale_attr", "size", "color",
			},
		},
		InlinePatterns: []InlinePattern{
			{Name: "window_state", Kind: PatternAssignment, Expr: `window\.(?:cartData|gbCartSsrData|__CART_STATE__|__INITIAL_STATE__|__PRELOADED_STATE__|__NUXT__)\s*=\s*`},
			{Name: "data_island", Kind: PatternIsland, Expr: `script#__NEXT_DATA__, script#__NUXT_DATA__, script#cart-data, script#app-data, script[type="application/json"][data-cart]`},
			{Name: "items_fragment", Kind: PatternFragment, Expr: `"(?:items|goodsList|goods_list|cartList|carts)"\s*:\s*`},
		},
		DOM: DOMRules{
			Selectors: []SelectorRule{
				{Selector: ".j-cart-item", Confidence: 0.95},
				{Selector: ".bsc-cart-item", Confidence: 0.9},
				{Selector: ".cart-item-box", Confidence: 0.9},
				{Selector: ".c-cart-item", Confidence: 0.85},
				{Selector: `[class*="cart-item"][data-goods-id]`, Confidence: 0.8},
				{Selector: "[data-goods-id]", Confidence: 0.6},
				{Selector: "[data-product-id]", Confidence: 0.55},
				{Selector: ".cart-item", Confidence: 0.5},
				{Selector: ".goods-item", Confidence: 0.4},
			},
			ScanTokens:        []string{"cart-item", "cartitem", "cart_item", "goods-item", "goods_item", "product-item", "product-card", "goods-card"},
			ScanAttrs:         []string{"goods-id", "goods_id", "product-id", "productid", "goodsid"},
			FuzzyThreshold:    0.95,
			IDAttrs:           []string{"data-goods-id", "data-product-id", "data-goodsid", "data-sku", "data-id", "data-spu"},
			ProductURLPattern: `-p-(\d+)(?:-cat-\d+)?\.html`,
			NameSelectors: []string{
				".goods-name", ".goods-title", ".product-name", ".item-name", ".goods-title-link",
				`[class*="goods-name"]`, `[class*="goods-title"]`, `[class*="product-name"]`, `[class*="title"]`,
			},
			NameAttrs:         []string{"title", "alt", "aria-label", "data-name", "data-goods-name"},
			PriceSelectors:    []string{".price", ".goods-price", ".sale-price", ".product-price", `[class*="price"]`},
			PriceAttrs:        []string{"data-price", "data-sale-price", "data-amount"},
			QuantitySelectors: []string{".quantity", ".qty", ".goods-num", `[class*="quantity"]`},
			QuantityAttrs:     []string{"data-quantity", "data-qty", "data-num"},
			VariantSelectors:  []string{".goods-attr", ".sku-attr", ".goods-sku", `[class*="attr"]`},
			GallerySelectors:  []string{".swiper-slide", `[class*="gallery"]`, `[class*="carousel"]`, `[class*="img-box"]`, `[class*="image"]`},
			LazyAttrs:         []string{"data-src", "data-original", "data-lazy-src", "data-lazy", "data-img"},
			PlaceholderMarkers: []string{
				"placeholder", "blank.gif", "loading.gif", "spacer.gif", "transparent.png",
			},
			ScanPartSuffixes: []string{
				"img", "image", "images", "pic", "photo", "name", "title", "price", "attr", "sku",
				"num", "qty", "quantity", "btn", "button", "info", "detail", "content",
				"wrap", "wrapper", "list", "container", "header", "footer",
			},
		},
		APICurrency: "USD",
		DOMCurrency: "USD",
		Tuning:      DefaultTuning(),
	}
}

// profileFile is the on-disk shape; durations are strings such as "5s".
type profileFile struct {
	Profile
	Tuning map[string]any `json:"tuning"`
}

// LoadProfile reads a json5 override file and merges it over the default
// profile. An empty path returns the default profile.
func LoadProfile(path string) (Profile, error) {
	out := DefaultProfile()
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("failed to read profile: %w", err)
	}

	var override profileFile
	if err := json5.Unmarshal(data, &override); err != nil {
		return out, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	tuning, err := parseTuning(override.Tuning)
	if err != nil {
		return out, fmt.Errorf("invalid tuning in %s: %w", path, err)
	}
	override.Profile.Tuning = tuning

	if err := mergo.Merge(&out, override.Profile, mergo.WithOverride); err != nil {
		return out, fmt.Errorf("failed to merge profile: %w", err)
	}

	return out, nil
}

func parseTuning(raw map[string]any) (Tuning, error) {
	var t Tuning
	for key, value := range raw {
		switch strings.ToLower(key) {
		case "navigationtimeout":
			d, err := parseDurationValue(value)
			if err != nil {
				return t, fmt.Errorf("%s: %w", key, err)
			}
			t.NavigationTimeout = d
		case "networkidletimeout":
			d, err := parseDurationValue(value)
			if err != nil {
				return t, fmt.Errorf("%s: %w", key, err)
			}
			t.NetworkIdleTimeout = d
		case "settledelay":
			d, err := parseDurationValue(value)
			if err != nil {
				return t, fmt.Errorf("%s: %w", key, err)
			}
			t.SettleDelay = d
		case "scrolldelay":
			d, err := parseDurationValue(value)
			if err != nil {
				return t, fmt.Errorf("%s: %w", key, err)
			}
			t.ScrollDelay = d
		case "materializedelay":
			d, err := parseDurationValue(value)
			if err != nil {
				return t, fmt.Errorf("%s: %w", key, err)
			}
			t.MaterializeDelay = d
		case "draintimeout":
			d, err := parseDurationValue(value)
			if err != nil {
				return t, fmt.Errorf("%s: %w", key, err)
			}
			t.DrainTimeout = d
		case "scrollcycles":
			t.ScrollCycles = intValue(value)
		case "materializesteps":
			t.MaterializeSteps = intValue(value)
		case "propertyweight":
			t.PropertyWeight = intValue(value)
		case "maxcandidates":
			t.MaxCandidates = intValue(value)
		case "maxbodybytes":
			t.MaxBodyBytes = intValue(value)
		case "maxrejected":
			t.MaxRejected = intValue(value)
		case "searchdepth":
			t.SearchDepth = intValue(value)
		default:
			return t, fmt.Errorf("unknown tuning key %q", key)
		}
	}
	return t, nil
}

func parseDurationValue(v any) (time.Duration, error) {
	switch val := v.(type) {
	case string:
		return time.ParseDuration(val)
	case float64:
		return time.Duration(val) * time.Millisecond, nil
	}
	return 0, fmt.Errorf("expected duration string or milliseconds, got %T", v)
}

func intValue(v any) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return 0
}

// Site is a compiled Profile, ready for use by the pipeline components.
type Site struct {
	Profile

	sharePath   *regexp.Regexp
	productURL  *regexp.Regexp
	inline      []compiledPattern
	productKeys map[string]struct{}
	idKeys      map[string]struct{}
	decoyKeys   map[string]struct{}
}

type compiledPattern struct {
	InlinePattern
	re *regexp.Regexp
}

// Compile validates the profile and precompiles its patterns.
func (p Profile) Compile() (*Site, error) {
	if p.Domain == "" {
		return nil, fmt.Errorf("profile %q has no domain", p.Version)
	}

	s := &Site{
		Profile:     p,
		productKeys: toSet(p.ProductKeys),
		idKeys:      toSet(p.IdentifierKeys),
		decoyKeys:   toSet(p.DecoyKeys),
	}
	s.Domain = strings.ToLower(strings.TrimPrefix(p.Domain, "."))

	if p.SharePathPattern != "" {
		re, err := regexp.Compile(p.SharePathPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid share path pattern: %w", err)
		}
		s.sharePath = re
	}

	if p.DOM.ProductURLPattern != "" {
		re, err := regexp.Compile(p.DOM.ProductURLPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid product url pattern: %w", err)
		}
		s.productURL = re
	}

	for _, ip := range p.InlinePatterns {
		cp := compiledPattern{InlinePattern: ip}
		switch ip.Kind {
		case PatternAssignment, PatternFragment:
			re, err := regexp.Compile(ip.Expr)
			if err != nil {
				return nil, fmt.Errorf("invalid inline pattern %s: %w", ip.Name, err)
			}
			cp.re = re
		case PatternIsland:
		default:
			return nil, fmt.Errorf("inline pattern %s has unknown kind %q", ip.Name, ip.Kind)
		}
		s.inline = append(s.inline, cp)
	}

	return s, nil
}

// MustCompile is Compile for profiles known to be valid.
func MustCompile(p Profile) *Site {
	s, err := p.Compile()
	if err != nil {
		panic(err)
	}
	return s
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
