package protocol

const (
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrBusy            = "E_BUSY"
	ErrNoRun           = "E_NO_RUN"
	ErrForbidden       = "E_FORBIDDEN"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBusy:            {},
	ErrNoRun:           {},
	ErrForbidden:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// ErrorMsg is the JSON body for rejected HTTP or websocket requests.
type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
