// Package paymenturi encodes and decodes the compact bazo payment URI
// format: bazo:<address>[?key=value&...]. The amount option is reserved and
// must be a non-negative finite number.
package paymenturi

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Scheme is the URI scheme of bazo payment links.
const Scheme = "bazo"

var (
	// ErrInvalidURI is returned when the text does not match the payment
	// URI format.
	ErrInvalidURI = errors.New("invalid payment URI")
	// ErrInvalidAmount is returned when the amount option is not a
	// non-negative finite number.
	ErrInvalidAmount = errors.New("invalid amount")
)

// uriPattern tolerates up to two slashes after the scheme, like the URIs
// some wallets emit.
var uriPattern = regexp.MustCompile(`^` + Scheme + `:/?/?([^?]+)(?:\?(.*))?$`)

// Payment is a decoded payment URI. Amount is set only when the amount
// option was present; its raw string form stays in Options.
type Payment struct {
	Address string
	Options map[string]string
	Amount  *float64
}

// Decode parses a payment URI.
func Decode(text string) (Payment, error) {
	match := uriPattern.FindStringSubmatch(text)
	if match == nil {
		return Payment{}, fmt.Errorf("%w: %s", ErrInvalidURI, text)
	}

	address := match[1]
	options, err := parseQuery(match[2])
	if err != nil {
		return Payment{}, fmt.Errorf("%w: %s", ErrInvalidURI, text)
	}

	payment := Payment{Address: address, Options: options}
	if raw, ok := options["amount"]; ok {
		amount, err := parseAmount(raw)
		if err != nil {
			return Payment{}, err
		}
		payment.Amount = &amount
	}
	return payment, nil
}

// Encode serializes an address and options into a payment URI. The amount
// option, when present, is validated before any serialization happens.
func Encode(address string, options map[string]string) (string, error) {
	if raw, ok := options["amount"]; ok {
		if _, err := parseAmount(raw); err != nil {
			return "", err
		}
	}

	query := buildQuery(options)
	if query == "" {
		return Scheme + ":" + address, nil
	}
	return Scheme + ":" + address + "?" + query, nil
}

func parseAmount(raw string) (float64, error) {
	amount, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return amount, nil
}

func parseQuery(raw string) (map[string]string, error) {
	options := make(map[string]string)
	if raw == "" {
		return options, nil
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, err
	}
	for key, vals := range values {
		if len(vals) > 0 {
			options[key] = vals[0]
		}
	}
	return options, nil
}

func buildQuery(options map[string]string) string {
	if len(options) == 0 {
		return ""
	}
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(options[key]))
	}
	return b.String()
}
