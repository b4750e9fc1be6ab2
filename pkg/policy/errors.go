package policy

import (
	"errors"
	"fmt"

	"github.com/aura-nw/smart-account-sample/pkg/message"
	"github.com/aura-nw/smart-account-sample/pkg/spendlimit"
)

// Error kinds returned by policy modules. Every error aborts the transaction; none is
// retried.
var (
	ErrUnauthorized          = spendlimit.ErrUnauthorized
	ErrLimitExceeded         = spendlimit.ErrLimitExceeded
	ErrInvalidSignature      = errors.New("invalid signature")
	ErrInvalidMessageFormat  = message.ErrInvalidFormat
	ErrDisallowedMessageType = errors.New("disallowed message type")
	ErrUnsupported           = errors.New("unsupported")
)

// ContractError carries a descriptive message for one of the error kinds above.
type ContractError struct {
	Kind error
	Msg  string
}

func (e *ContractError) Error() string {
	return e.Msg
}

func (e *ContractError) Unwrap() error {
	return e.Kind
}

func contractError(kind error, format string, args ...any) *ContractError {
	return &ContractError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
