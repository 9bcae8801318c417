package mobilemoney

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // the aggregator mandates HMAC-SHA1
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const signatureMethod = "HMAC-SHA1"

// signer produces the s3pAuth Authorization header for one request.
type signer struct {
	token  string
	secret string
}

// header signs method+endpoint over params and returns the Authorization value.
// endpoint is the absolute URL without its query string.
func (s signer) header(method, endpoint string, params map[string]string, nonce string, timestampMs int64) string {
	ts := strconv.FormatInt(timestampMs, 10)
	all := make(map[string]string, len(params)+4)
	for k, v := range params {
		all[k] = v
	}
	all["s3pAuth_nonce"] = nonce
	all["s3pAuth_timestamp"] = ts
	all["s3pAuth_signature_method"] = signatureMethod
	all["s3pAuth_token"] = s.token

	signature := s.sign(baseString(method, endpoint, all))
	return fmt.Sprintf(
		`s3pAuth, s3pAuth_timestamp="%s", s3pAuth_signature="%s", s3pAuth_nonce="%s", s3pAuth_signature_method="%s", s3pAuth_token="%s"`,
		ts, signature, nonce, signatureMethod, s.token,
	)
}

func (s signer) sign(base string) string {
	mac := hmac.New(sha1.New, []byte(s.secret))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// baseString is METHOD&enc(url)&enc(k1=v1&k2=v2...) with keys sorted and
// values trimmed.
func baseString(method, endpoint string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+strings.TrimSpace(params[k]))
	}
	return method + "&" + percentEncode(endpoint) + "&" + percentEncode(strings.Join(pairs, "&"))
}

// percentEncode is RFC 3986 encoding: only unreserved characters pass through.
func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
