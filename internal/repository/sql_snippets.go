package repository

// SQL snippet constants for reusable SELECT field lists. Add a column once
// here instead of at every call site.

const (
	// BookingSelectFields - columns of the bookings table.
	BookingSelectFields = `
		id, version, student_id, tutor_id, tutor_profile_id,
		start_time, end_time, time_zone,
		session_state, session_outcome, payment_state, dispute_state,
		amount_cents, currency, platform_fee_cents,
		meeting_id, meeting_join_url, calendar_event_id,
		external_checkout_session_id, external_payment_intent_id,
		created_at, updated_at, confirmed_at, cancelled_at, ended_at,
		cancellation_reason, cancelled_by, reminder_sent_at, package_id
	`

	// PaymentSelectFields - columns of the payments table.
	PaymentSelectFields = `
		id, booking_id, external_session_id, external_intent_id,
		amount_cents, currency, state, idempotency_key, created_at, captured_at
	`

	// RefundSelectFields - columns of the refunds table.
	RefundSelectFields = `
		id, payment_id, booking_id, external_refund_id, amount_cents, reason, created_at
	`

	// WalletSelectFields - columns of the wallets table.
	WalletSelectFields = `
		id, student_id, credit_balance_cents, created_at, updated_at
	`

	// AvailabilitySlotSelectFields - columns of the availability_slots table.
	AvailabilitySlotSelectFields = `
		id, tutor_id, day_of_week, start_time, end_time, time_zone
	`

	// PackageSelectFields - columns of the packages table.
	PackageSelectFields = `
		id, student_id, tutor_id, total_sessions, remaining_sessions,
		expires_at, created_at, deleted_at, deleted_by
	`
)
