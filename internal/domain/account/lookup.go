package account

import (
	"strings"

	"github.com/mybank-ledger/internal/domain/shared"
)

var ErrInvalidLookup = shared.NewError(shared.ClassValidation, "INVALID_RECEIVER_LOOKUP", "receiver lookup must be UPI, ACCOUNT or MOBILE with a value")

// LookupKind selects the identifier used to find a receiving account
type LookupKind string

const (
	LookupUPI     LookupKind = "UPI"
	LookupAccount LookupKind = "ACCOUNT"
	LookupMobile  LookupKind = "MOBILE"
)

// Lookup identifies an account by alias, account number or phone
type Lookup struct {
	Kind  LookupKind `json:"kind"`
	Value string     `json:"value"`
}

// NewLookup normalises kind and value. "ACC" is accepted for account numbers.
func NewLookup(kind, value string) (Lookup, error) {
	k := LookupKind(strings.ToUpper(strings.TrimSpace(kind)))
	if k == "ACC" {
		k = LookupAccount
	}
	l := Lookup{Kind: k, Value: strings.TrimSpace(value)}
	if err := l.Validate(); err != nil {
		return Lookup{}, err
	}
	return l, nil
}

func (l Lookup) Validate() error {
	switch l.Kind {
	case LookupUPI, LookupAccount, LookupMobile:
	default:
		return ErrInvalidLookup
	}
	if l.Value == "" {
		return ErrInvalidLookup
	}
	return nil
}

// Channel maps the lookup kind onto the ledger channel tag
func (l Lookup) Channel() shared.Channel {
	switch l.Kind {
	case LookupUPI:
		return shared.ChannelUPI
	case LookupMobile:
		return shared.ChannelMobile
	default:
		return shared.ChannelAccount
	}
}

// Matches reports whether acc is the account this lookup names
func (l Lookup) Matches(acc *Account) bool {
	switch l.Kind {
	case LookupUPI:
		return strings.EqualFold(acc.UPIAlias, l.Value)
	case LookupAccount:
		return acc.AccountNumber == l.Value
	case LookupMobile:
		return acc.Phone != "" && acc.Phone == l.Value
	}
	return false
}

func (l Lookup) String() string {
	return string(l.Kind) + ":" + l.Value
}
