package domain

const (
	CanonicalEventClassDomain        = "domain"
	CanonicalEventClassAnalyticsOnly = "analytics_only"
	CanonicalEventClassOps           = "ops"
)

const (
	EventEscrowFunded       = "escrow.funded"
	EventEscrowReleased     = "escrow.released"
	EventEscrowRefunded     = "escrow.refunded"
	EventPaymentSettled     = "payment.settled"
	EventLicenseMinted      = "license.minted"
	EventLicenseTransferred = "license.transferred"
	EventLicenseBurned      = "license.burned"
	EventPurchaseCompleted  = "purchase.completed"
	EventPurchaseFailed     = "purchase.failed"
)

func IsCanonicalInputEvent(string) bool { return false }

func IsCanonicalEmittedEvent(eventType string) bool {
	switch eventType {
	case EventEscrowFunded, EventEscrowReleased, EventEscrowRefunded,
		EventPaymentSettled, EventLicenseMinted, EventLicenseTransferred,
		EventLicenseBurned, EventPurchaseCompleted, EventPurchaseFailed:
		return true
	default:
		return false
	}
}

func CanonicalEventClass(eventType string) string {
	switch eventType {
	case EventPurchaseCompleted, EventPurchaseFailed, EventPaymentSettled:
		return CanonicalEventClassDomain
	case EventEscrowFunded, EventEscrowReleased, EventEscrowRefunded,
		EventLicenseMinted, EventLicenseTransferred, EventLicenseBurned:
		return CanonicalEventClassAnalyticsOnly
	default:
		return ""
	}
}

func CanonicalPartitionKeyPath(eventType string) string {
	switch eventType {
	case EventPurchaseCompleted, EventPurchaseFailed:
		return "data.purchase_id"
	case EventPaymentSettled:
		return "data.payment_id"
	case EventEscrowFunded, EventEscrowReleased, EventEscrowRefunded:
		return "data.escrow_id"
	case EventLicenseMinted, EventLicenseTransferred, EventLicenseBurned:
		return "data.token_id"
	default:
		return ""
	}
}
