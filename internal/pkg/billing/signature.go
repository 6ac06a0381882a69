package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds how old a signed timestamp may be before
// the signature is rejected as a possible replay.
const DefaultSignatureTolerance = 5 * time.Minute

// VerifySignature checks a provider signature header of the form
// "t=<unix-ts>,v1=<hex-hmac>[,v1=...]" against the raw request body. The
// expected MAC is HMAC-SHA256 over "<t>.<body>" with the shared webhook
// secret, compared in constant time. Callers must not parse the body before
// this succeeds.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	header = strings.TrimSpace(header)
	if header == "" || strings.TrimSpace(secret) == "" {
		return ErrBadSignature
	}

	var timestamp string
	var candidates [][]byte
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			decoded, err := hex.DecodeString(value)
			if err == nil {
				candidates = append(candidates, decoded)
			}
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return ErrBadSignature
	}

	if tolerance > 0 {
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return ErrBadSignature
		}
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrBadSignature)
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		if hmac.Equal(expected, candidate) {
			return nil
		}
	}
	return ErrBadSignature
}

// SignPayload produces a valid signature header for payload, used by tests
// and local tooling to emulate the provider.
func SignPayload(payload []byte, secret string, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}
