package enums

// PaymentMethod is how the buyer settles an order.
type PaymentMethod string

const (
	PaymentMethodCOD   PaymentMethod = "cod"
	PaymentMethodVNPay PaymentMethod = "vnpay"
)

var paymentMethods = values[PaymentMethod]{PaymentMethodCOD, PaymentMethodVNPay}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return paymentMethods.contains(p) }

// IsGateway reports whether settlement happens through an external gateway
// callback rather than on delivery.
func (p PaymentMethod) IsGateway() bool { return p == PaymentMethodVNPay }

// PaymentStatus is the settlement state of an order or a payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

var paymentStatuses = values[PaymentStatus]{
	PaymentStatusPending,
	PaymentStatusCompleted,
	PaymentStatusFailed,
	PaymentStatusRefunded,
	PaymentStatusCancelled,
}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return paymentStatuses.contains(p) }
