package entity

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/ethereum/go-ethereum/common"
)

// Currency is the quote currency requested from the upstream API.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyJPY Currency = "JPY"
)

// ParseCurrency maps a user supplied currency code onto the supported set.
// Anything unknown (including an empty string) silently becomes USD.
func ParseCurrency(raw string) Currency {
	switch Currency(strings.ToUpper(strings.TrimSpace(raw))) {
	case CurrencyEUR:
		return CurrencyEUR
	case CurrencyJPY:
		return CurrencyJPY
	default:
		return CurrencyUSD
	}
}

// Symbol returns the display grapheme for the currency ($, €, ¥).
func (c Currency) Symbol() string {
	if cur := money.GetCurrency(string(c)); cur != nil && cur.Grapheme != "" {
		return cur.Grapheme
	}
	return string(c)
}

// QueryKey identifies one aggregation: the upstream query parameters and the cache key.
type QueryKey struct {
	ChainID  string
	Address  string
	Currency Currency
}

// NewQueryKey builds a normalized key. Full-length hex addresses are converted to their
// EIP-55 checksum form so that differently cased inputs share one cache entry; anything
// else (ENS names, short test addresses) is only trimmed and lower-cased.
func NewQueryKey(chainID, address, currency string) QueryKey {
	address = strings.TrimSpace(address)
	if common.IsHexAddress(address) {
		address = common.HexToAddress(address).Hex()
	} else {
		address = strings.ToLower(address)
	}
	return QueryKey{
		ChainID:  strings.TrimSpace(chainID),
		Address:  address,
		Currency: ParseCurrency(currency),
	}
}

// Validate rejects keys that can never produce an upstream answer.
func (k QueryKey) Validate() error {
	if k.ChainID == "" {
		return fmt.Errorf("%w: chain id is empty", ErrInvalidQuery)
	}
	if k.Address == "" {
		return fmt.Errorf("%w: address is empty", ErrInvalidQuery)
	}
	if strings.ContainsAny(k.ChainID+k.Address, "/?#") {
		return fmt.Errorf("%w: chain id or address contains reserved characters", ErrInvalidQuery)
	}
	return nil
}

// CacheKey includes the currency: cached quotes are currency dependent.
func (k QueryKey) CacheKey() string {
	return k.ChainID + "|" + k.Address + "|" + string(k.Currency)
}

func (k QueryKey) String() string {
	return k.CacheKey()
}
