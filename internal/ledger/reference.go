package ledger

import (
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	transferPrefix = "tr_"
	depositPrefix  = "ps_"
)

// NewTransferReference returns a unique, time-sortable transfer reference.
func NewTransferReference() string {
	return transferPrefix + strings.ToLower(ulid.Make().String())
}

// NewDepositReference returns a unique reference shared with the payment provider.
func NewDepositReference() string {
	return depositPrefix + uuid.NewString()
}
