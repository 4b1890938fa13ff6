package finance

import (
	"fmt"
	"sort"
	"strings"
)

// units of each currency per US dollar
var rates = map[string]float64{
	"USD": 1,
	"LYD": 4.85,
	"EUR": 0.92,
	"GBP": 0.79,
	"TRY": 32.5,
}

func Supported(code string) bool {
	_, ok := rates[strings.ToUpper(code)]
	return ok
}

func Currencies() []string {
	out := make([]string, 0, len(rates))
	for code := range rates {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Rate returns how many units of to one unit of from buys.
func Rate(from, to string) (float64, error) {
	f, ok := rates[strings.ToUpper(from)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, from)
	}
	t, ok := rates[strings.ToUpper(to)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, to)
	}
	return t / f, nil
}

func Convert(amount float64, from, to string) (float64, error) {
	r, err := Rate(from, to)
	if err != nil {
		return 0, err
	}
	return Round(amount * r), nil
}
