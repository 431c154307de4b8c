package domain

import (
	"database/sql/driver"
	"fmt"
	"slices"
)

// enumNames maps the closed set of values of a small enum to their wire and
// column representation. Zero is never a valid member.
type enumNames[T ~uint8] map[T]string

func (n enumNames[T]) name(v T) string {
	if s, ok := n[v]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", uint8(v))
}

func (n enumNames[T]) parse(s string) (T, bool) {
	for k, v := range n {
		if v == s {
			return k, true
		}
	}
	var zero T
	return zero, false
}

func (n enumNames[T]) marshal(v T) ([]byte, error) {
	s, ok := n[v]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEnum, uint8(v))
	}
	return []byte(s), nil
}

func (n enumNames[T]) unmarshal(dst *T, b []byte) error {
	v, ok := n.parse(string(b))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEnum, string(b))
	}
	*dst = v
	return nil
}

func (n enumNames[T]) value(v T) (driver.Value, error) {
	s, ok := n[v]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownEnum, uint8(v))
	}
	return s, nil
}

func (n enumNames[T]) scan(dst *T, src any) error {
	switch v := src.(type) {
	case string:
		return n.unmarshal(dst, []byte(v))
	case []byte:
		return n.unmarshal(dst, v)
	case nil:
		var zero T
		*dst = zero
		return nil
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrUnknownEnum, src)
	}
}

type OrderStatus uint8

const (
	OrderPending OrderStatus = iota + 1
	OrderConfirmed
	OrderProcessing
	OrderDispatched
	OrderDelivered
	OrderCancelled
)

var orderStatusNames = enumNames[OrderStatus]{
	OrderPending:    "pending",
	OrderConfirmed:  "confirmed",
	OrderProcessing: "processing",
	OrderDispatched: "dispatched",
	OrderDelivered:  "delivered",
	OrderCancelled:  "cancelled",
}

// Status only moves forward; cancellation is possible until dispatch.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderDispatched, OrderCancelled},
	OrderDispatched: {OrderDelivered},
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	var st OrderStatus
	if err := st.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return st, nil
}

func (s OrderStatus) String() string                     { return orderStatusNames.name(s) }
func (s OrderStatus) MarshalText() ([]byte, error)       { return orderStatusNames.marshal(s) }
func (s *OrderStatus) UnmarshalText(b []byte) error      { return orderStatusNames.unmarshal(s, b) }
func (s OrderStatus) Value() (driver.Value, error)       { return orderStatusNames.value(s) }
func (s *OrderStatus) Scan(src any) error                { return orderStatusNames.scan(s, src) }
func (s OrderStatus) CanTransitionTo(n OrderStatus) bool { return slices.Contains(orderTransitions[s], n) }

// Cancellable reports whether an order in this status may still be cancelled.
func (s OrderStatus) Cancellable() bool { return s.CanTransitionTo(OrderCancelled) }

type CartStatus uint8

const (
	CartActive CartStatus = iota + 1
	CartCheckedOut
	CartAbandoned
)

var cartStatusNames = enumNames[CartStatus]{
	CartActive:     "active",
	CartCheckedOut: "checked_out",
	CartAbandoned:  "abandoned",
}

var cartTransitions = map[CartStatus][]CartStatus{
	CartActive: {CartCheckedOut, CartAbandoned},
}

func (s CartStatus) String() string                    { return cartStatusNames.name(s) }
func (s CartStatus) MarshalText() ([]byte, error)      { return cartStatusNames.marshal(s) }
func (s *CartStatus) UnmarshalText(b []byte) error     { return cartStatusNames.unmarshal(s, b) }
func (s CartStatus) Value() (driver.Value, error)      { return cartStatusNames.value(s) }
func (s *CartStatus) Scan(src any) error               { return cartStatusNames.scan(s, src) }
func (s CartStatus) CanTransitionTo(n CartStatus) bool { return slices.Contains(cartTransitions[s], n) }

type PaymentStatus uint8

const (
	PaymentInitiated PaymentStatus = iota + 1
	PaymentPending
	PaymentSuccess
	PaymentFailed
)

var paymentStatusNames = enumNames[PaymentStatus]{
	PaymentInitiated: "initiated",
	PaymentPending:   "pending",
	PaymentSuccess:   "success",
	PaymentFailed:    "failed",
}

// A capture reported after a failure wins; nothing leaves success.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentInitiated: {PaymentPending, PaymentSuccess, PaymentFailed},
	PaymentPending:   {PaymentSuccess, PaymentFailed},
	PaymentFailed:    {PaymentSuccess},
}

func (s PaymentStatus) String() string                       { return paymentStatusNames.name(s) }
func (s PaymentStatus) MarshalText() ([]byte, error)         { return paymentStatusNames.marshal(s) }
func (s *PaymentStatus) UnmarshalText(b []byte) error        { return paymentStatusNames.unmarshal(s, b) }
func (s PaymentStatus) Value() (driver.Value, error)         { return paymentStatusNames.value(s) }
func (s *PaymentStatus) Scan(src any) error                  { return paymentStatusNames.scan(s, src) }
func (s PaymentStatus) CanTransitionTo(n PaymentStatus) bool { return slices.Contains(paymentTransitions[s], n) }

type PaymentType uint8

const (
	PaymentAdvance PaymentType = iota + 1
	PaymentFinal
	PaymentFull
)

var paymentTypeNames = enumNames[PaymentType]{
	PaymentAdvance: "advance",
	PaymentFinal:   "final",
	PaymentFull:    "full",
}

func ParsePaymentType(s string) (PaymentType, error) {
	var t PaymentType
	if err := t.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return t, nil
}

func (t PaymentType) String() string                { return paymentTypeNames.name(t) }
func (t PaymentType) MarshalText() ([]byte, error)  { return paymentTypeNames.marshal(t) }
func (t *PaymentType) UnmarshalText(b []byte) error { return paymentTypeNames.unmarshal(t, b) }
func (t PaymentType) Value() (driver.Value, error)  { return paymentTypeNames.value(t) }
func (t *PaymentType) Scan(src any) error           { return paymentTypeNames.scan(t, src) }

type PaymentMethod uint8

const (
	MethodUPI PaymentMethod = iota + 1
	MethodCard
	MethodNetBanking
	MethodWallet
)

var paymentMethodNames = enumNames[PaymentMethod]{
	MethodUPI:        "upi",
	MethodCard:       "card",
	MethodNetBanking: "netbanking",
	MethodWallet:     "wallet",
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	var m PaymentMethod
	if err := m.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return m, nil
}

func (m PaymentMethod) String() string                { return paymentMethodNames.name(m) }
func (m PaymentMethod) MarshalText() ([]byte, error)  { return paymentMethodNames.marshal(m) }
func (m *PaymentMethod) UnmarshalText(b []byte) error { return paymentMethodNames.unmarshal(m, b) }
func (m PaymentMethod) Value() (driver.Value, error)  { return paymentMethodNames.value(m) }
func (m *PaymentMethod) Scan(src any) error           { return paymentMethodNames.scan(m, src) }

type Role uint8

const (
	RoleCustomer Role = iota + 1
	RoleOperator
	RoleAdmin
)

var roleNames = enumNames[Role]{
	RoleCustomer: "customer",
	RoleOperator: "operator",
	RoleAdmin:    "admin",
}

func ParseRole(s string) (Role, error) {
	var r Role
	if err := r.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return r, nil
}

func (r Role) String() string                { return roleNames.name(r) }
func (r Role) MarshalText() ([]byte, error)  { return roleNames.marshal(r) }
func (r *Role) UnmarshalText(b []byte) error { return roleNames.unmarshal(r, b) }
func (r Role) Value() (driver.Value, error)  { return roleNames.value(r) }
func (r *Role) Scan(src any) error           { return roleNames.scan(r, src) }
