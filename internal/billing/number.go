package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const numberHashLen = 8

// NumberInputs is everything an invoice number is derived from.
// PeriodStart and PeriodEnd are used verbatim, normally YYYY-MM-DD.
type NumberInputs struct {
	Prefix        string
	PeriodStart   string
	PeriodEnd     string
	TotalHours    decimal.Decimal
	Projects      []string
	ReferenceTime time.Time
}

// Canonical is the string hashed into the invoice number.
func (in NumberInputs) Canonical() string {
	projects := slices.Clone(in.Projects)
	slices.Sort(projects)
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		in.Prefix,
		in.PeriodStart,
		in.PeriodEnd,
		formatHours(in.TotalHours),
		strings.Join(projects, ","),
		ISOTimestamp(in.ReferenceTime),
	)
}

// formatHours renders hours with two places from the nearest float64, so
// exact ties such as 2.125 round to even ("2.12"), matching numbers issued
// by earlier versions of the tool.
func formatHours(h decimal.Decimal) string {
	return strconv.FormatFloat(h.InexactFloat64(), 'f', 2, 64)
}

// GenerateNumber returns "<prefix>-<first 8 hex chars of sha256(canonical)>".
func GenerateNumber(in NumberInputs) string {
	sum := sha256.Sum256([]byte(in.Canonical()))
	return in.Prefix + "-" + hex.EncodeToString(sum[:])[:numberHashLen]
}

// VerifyNumber reports whether number was generated from in.
func VerifyNumber(number string, in NumberInputs) bool {
	return number == GenerateNumber(in)
}

// ISOTimestamp formats t's wall clock as YYYY-MM-DDTHH:MM:SS, adding
// microseconds only when they are non-zero. The zone is not printed.
func ISOTimestamp(t time.Time) string {
	s := t.Format("2006-01-02T15:04:05")
	if us := t.Nanosecond() / int(time.Microsecond); us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s
}

// ReferenceTime is the midpoint of the billing period when there is
// anything to bill, and now otherwise.
func ReferenceTime(start, end time.Time, hasItems bool, now time.Time) time.Time {
	if !hasItems {
		return now
	}
	return start.Add(end.Sub(start) / 2)
}
