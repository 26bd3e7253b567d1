package transaction

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Reference format: <PREFIX>_<chatID>_<epochMillis>.
// The prefix distinguishes the originating flow and the chat id embedded in the
// reference lets a webhook recover the owning user without a session.

const (
	PrefixFund        = "FUND"
	PrefixAirtime     = "AIRTIME"
	PrefixData        = "DATA"
	PrefixElectricity = "ELECTRICITY"
	PrefixTV          = "TV"
)

var ErrBadReference = errors.New("transaction: malformed reference")

// NewReference builds a reference for chatID at the given time.
func NewReference(prefix string, chatID int64, at time.Time) string {
	return fmt.Sprintf("%s_%d_%d", prefix, chatID, at.UnixMilli())
}

// ParseReference recovers the prefix and chat id from a reference.
func ParseReference(ref string) (prefix string, chatID int64, err error) {
	parts := strings.Split(ref, "_")
	if len(parts) != 3 {
		return "", 0, ErrBadReference
	}
	switch parts[0] {
	case PrefixFund, PrefixAirtime, PrefixData, PrefixElectricity, PrefixTV:
	default:
		return "", 0, ErrBadReference
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id == 0 {
		return "", 0, ErrBadReference
	}
	if _, err := strconv.ParseInt(parts[2], 10, 64); err != nil {
		return "", 0, ErrBadReference
	}
	return parts[0], id, nil
}

// TypeForPrefix maps a reference prefix to its record type.
func TypeForPrefix(prefix string) (Type, bool) {
	switch prefix {
	case PrefixFund:
		return TypeCredit, true
	case PrefixAirtime:
		return TypeAirtime, true
	case PrefixData:
		return TypeData, true
	case PrefixElectricity:
		return TypeElectricity, true
	case PrefixTV:
		return TypeTV, true
	default:
		return "", false
	}
}
