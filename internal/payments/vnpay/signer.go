package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const (
	fieldSecureHash     = "vnp_SecureHash"
	fieldSecureHashType = "vnp_SecureHashType"
	fieldPrefix         = "vnp_"
)

// DataString is the canonical form that gets signed: sorted names, values encoded, names raw.
func DataString(params map[string]string) string {
	return canonical(params, func(name string) string { return name })
}

// QueryString is the canonical form placed on the redirect URL: names and values both encoded.
func QueryString(params map[string]string) string {
	return canonical(params, url.QueryEscape)
}

// Sign returns hex(HMAC-SHA512(secret, data)).
func Sign(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over every vnp_* field except the hash fields
// and compares it with the received vnp_SecureHash in constant time.
func Verify(secret string, params url.Values) bool {
	received := strings.ToLower(strings.TrimSpace(params.Get(fieldSecureHash)))
	if received == "" || secret == "" {
		return false
	}
	expected := Sign(secret, DataString(SignedFields(params)))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

// SignedFields flattens the callback query to the fields covered by the signature.
func SignedFields(params url.Values) map[string]string {
	fields := make(map[string]string, len(params))
	for name, values := range params {
		if !strings.HasPrefix(name, fieldPrefix) || name == fieldSecureHash || name == fieldSecureHashType {
			continue
		}
		if len(values) == 0 {
			continue
		}
		fields[name] = values[0]
	}
	return fields
}

func canonical(params map[string]string, encodeName func(string) string) string {
	names := make([]string, 0, len(params))
	for name, value := range params {
		if value == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(encodeName(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[name]))
	}
	return b.String()
}
