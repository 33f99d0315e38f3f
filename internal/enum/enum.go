package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending        = "PENDING"
	OrderStatusOutForDelivery = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      = "DELIVERED"
	OrderStatusCancelled      = "CANCELLED"
)

const (
	OrderTypeGuest      = "GUEST"
	OrderTypeRegistered = "REGISTERED"
)

// ── Group B: Catalog (CHECK constrained in DB) ──

// OVERRIDE replaces the running price with the selected choice's price;
// ADD sums the choice's price onto it. Override options always apply
// before add options.
const (
	PricingModeOverride = "OVERRIDE"
	PricingModeAdd      = "ADD"
)

// ── Group C: Roles ──

const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)
