// Package signature builds and verifies the MD5 request signature used by the
// PayFast-style redirect gateway.
//
// The canonical string is made of the non-empty parameters sorted by key, each
// value trimmed and percent-encoded like JavaScript's encodeURIComponent with
// spaces written as '+', joined with '&', optionally followed by
// "&passphrase=<encoded passphrase>" where spaces stay "%20".
package signature

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Field adalah nama parameter signature di query string dan payload notifikasi.
const Field = "signature"

// QueryEscape meng-encode ! ' ( ) *, gateway mengharapkannya literal.
var componentLiterals = strings.NewReplacer("%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

func escapeComponent(v string) string {
	return componentLiterals.Replace(url.QueryEscape(v))
}

// Encode meng-encode nilai yang sudah di-trim; spasi menjadi '+'.
func Encode(v string) string {
	return escapeComponent(strings.TrimSpace(v))
}

// EncodePassphrase tidak men-trim dan menulis spasi sebagai %20.
// '+' literal sudah menjadi %2B, jadi penggantian ini aman.
func EncodePassphrase(p string) string {
	return strings.ReplaceAll(escapeComponent(p), "+", "%20")
}

// Canonical merangkai string yang di-hash. Parameter bernama Field diabaikan.
func Canonical(params map[string]string, passphrase string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == Field || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(Encode(params[k]))
		b.WriteByte('&')
	}
	s := strings.TrimSuffix(b.String(), "&")
	if passphrase != "" {
		s += "&passphrase=" + EncodePassphrase(passphrase)
	}
	return s
}

// Sign mengembalikan MD5 hex (huruf kecil) dari Canonical.
func Sign(params map[string]string, passphrase string) string {
	sum := md5.Sum([]byte(Canonical(params, passphrase)))
	return hex.EncodeToString(sum[:])
}

// Verify menghitung ulang signature dan membandingkannya secara constant-time.
func Verify(params map[string]string, passphrase, got string) bool {
	if got == "" {
		return false
	}
	want := Sign(params, passphrase)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(strings.TrimSpace(got)))) == 1
}

// FromValues mengambil nilai pertama tiap key dari payload form.
func FromValues(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// QueryString merangkai parameter non-kosong terurut ditambah signature di akhir.
func QueryString(params map[string]string, sig string) string {
	canonical := Canonical(params, "")
	if sig == "" {
		return canonical
	}
	if canonical == "" {
		return Field + "=" + sig
	}
	return canonical + "&" + Field + "=" + sig
}
