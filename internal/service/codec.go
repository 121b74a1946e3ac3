package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Session identifiers are an external contract shared with the dashboard:
// "tenant_{tenantId}_{digitsOnlyPhone}" once the paired number is known, or
// "tenant_{tenantId}_temp_{epochMillis}" before it is.
const sessionIDPrefix = "tenant_"

// SessionKey is the decoded form of a session identifier. Phone is empty for
// temporary identifiers.
type SessionKey struct {
	TenantID int64
	Phone    string
}

// EncodeSessionID derives the session identifier for a tenant. The phone is
// normalized to digits; an empty or digitless phone yields a temporary id.
func EncodeSessionID(tenantID int64, phone string) string {
	digits := digitsOnly(phone)
	if digits == "" {
		return fmt.Sprintf("%s%d_temp_%d", sessionIDPrefix, tenantID, time.Now().UnixMilli())
	}
	return fmt.Sprintf("%s%d_%s", sessionIDPrefix, tenantID, digits)
}

// DecodeSessionID parses a session identifier. It returns nil for anything
// that does not match either pattern; callers treat nil as not found rather
// than an error, so a foreign-looking id can never crash a lookup.
func DecodeSessionID(sessionID string) *SessionKey {
	rest, ok := strings.CutPrefix(sessionID, sessionIDPrefix)
	if !ok {
		return nil
	}

	idPart, tail, ok := strings.Cut(rest, "_")
	if !ok || idPart == "" || tail == "" {
		return nil
	}
	tenantID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return nil
	}

	if ts, ok := strings.CutPrefix(tail, "temp_"); ok {
		if ts == "" || digitsOnly(ts) != ts {
			return nil
		}
		return &SessionKey{TenantID: tenantID}
	}

	if digitsOnly(tail) != tail {
		return nil
	}
	return &SessionKey{TenantID: tenantID, Phone: tail}
}

// digitsOnly strips every non-digit rune, so "+55 (11) 99999-9999" and
// "5511999999999" land on the same identifier.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
