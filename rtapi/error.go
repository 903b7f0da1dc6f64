package rtapi

import (
	"fmt"
	"sort"
	"strings"
)

// Error codes the realtime server reports in an Error payload.
const (
	ErrorRuntimeException         int32 = 0
	ErrorUnrecognizedPayload      int32 = 1
	ErrorMissingPayload           int32 = 2
	ErrorBadInput                 int32 = 3
	ErrorMatchNotFound            int32 = 4
	ErrorMatchJoinRejected        int32 = 5
	ErrorRuntimeFunctionNotFound  int32 = 6
	ErrorRuntimeFunctionException int32 = 7
)

// Error is a server-reported failure. When it carries a cid it fails the
// matching call; without one it is delivered to the error push handler.
type Error struct {
	Code    int32             `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Context map[string]string `json:"context,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("realtime error %d: %s", e.Code, e.Message)
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + e.Context[k]
	}
	return fmt.Sprintf("realtime error %d: %s (%s)", e.Code, e.Message, strings.Join(pairs, ", "))
}
