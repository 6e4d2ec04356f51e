package payment

import (
	"time"

	"github.com/google/uuid"
)

type Method string

const (
	MethodCreditCard Method = "credit_card"
	MethodPix        Method = "pix"
	MethodBoleto     Method = "boleto"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCreditCard, MethodPix, MethodBoleto:
		return true
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

// Payment is the one-per-appointment ledger row. Its amount is fixed at the
// professional's consultation fee at booking time; ApprovedAt is set only on
// the pending -> approved transition.
type Payment struct {
	TxnID         string
	AppointmentID uuid.UUID
	AmountCents   int64
	Method        Method
	Status        Status
	ApprovedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// newTxnID mimics gateway transaction references.
func newTxnID() string {
	return "txn_" + uuid.NewString()
}
