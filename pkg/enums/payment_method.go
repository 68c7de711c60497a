package enums

// PaymentMethod identifies the channel a buyer paid through.
type PaymentMethod string

const (
	PaymentMethodElsom   PaymentMethod = "elsom"
	PaymentMethodVisa    PaymentMethod = "visa"
	PaymentMethodODengi  PaymentMethod = "o_dengi"
	PaymentMethodBalance PaymentMethod = "balance"
	PaymentMethodMBank   PaymentMethod = "mbank"
)

var paymentMethods = []PaymentMethod{
	PaymentMethodElsom,
	PaymentMethodVisa,
	PaymentMethodODengi,
	PaymentMethodBalance,
	PaymentMethodMBank,
}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool {
	_, err := ParsePaymentMethod(string(p))
	return err == nil
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse("payment method", value, paymentMethods)
}
