package runner

import (
	"errors"
	"regexp"
	"sync"
)

// ErrDecode is returned when a 2xx body carries no call1RequestId.
var ErrDecode = errors.New("could not parse call1RequestId from HTML")

const correlationKey = "call1RequestId"

// Templated pages encode quotes as &quot;, JSON routes emit them literally.
// Values stop at the first " or &, so an id containing either is truncated.
const fieldPattern = `(?:&quot;|"):\s*(?:&quot;|")([^"&]+)`

var (
	patternMu    sync.RWMutex
	patternCache = map[string]*regexp.Regexp{
		correlationKey: regexp.MustCompile(regexp.QuoteMeta(correlationKey) + fieldPattern),
	}
)

// DecodeCorrelationID extracts call1RequestId from a response body.
func DecodeCorrelationID(body []byte) (string, error) {
	id, ok := DecodeField(body, correlationKey)
	if !ok {
		return "", ErrDecode
	}
	return id, nil
}

// DecodeField extracts the string value of key from an HTML or JSON body.
func DecodeField(body []byte, key string) (string, bool) {
	m := fieldRegexp(key).FindSubmatch(body)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

func fieldRegexp(key string) *regexp.Regexp {
	patternMu.RLock()
	re, ok := patternCache[key]
	patternMu.RUnlock()
	if ok {
		return re
	}

	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok = patternCache[key]; ok {
		return re
	}
	re = regexp.MustCompile(regexp.QuoteMeta(key) + fieldPattern)
	patternCache[key] = re
	return re
}
