package cex

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

// hmacAuth signs requests with HMAC-SHA256 over timestamp+method+path+body.
type hmacAuth struct {
	key    string
	secret string
}

func (h hmacAuth) headers(method, path, body string) map[string]string {
	return h.headersAt(method, path, body, time.Now().Unix())
}

// headersAt is split out so tests can pin the timestamp.
func (h hmacAuth) headersAt(method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write([]byte(ts + method + path + body))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"X-API-KEY":   h.key,
		"X-TIMESTAMP": ts,
		"X-SIGNATURE": sig,
	}
}
