package cache

import (
	"fmt"
	"strings"
	"time"
)

// BytesCache stores serialized reports with a TTL.
// A miss is (nil, false, nil); err is reserved for backend failures.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}

// ReportKey identifies a forecast report by the request fields that change it.
func ReportKey(symbol string, bars int, neural bool) string {
	mode := "heuristic"
	if neural {
		mode = "neural"
	}
	return fmt.Sprintf("forecast:%s:%d:%s", strings.ToUpper(symbol), bars, mode)
}
