package models

const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	ReminderDayBefore = "DAY_BEFORE"
	ReminderDayOf     = "DAY_OF"
)

const (
	ClaimPending = "pending"
	ClaimSent    = "sent"
	ClaimFailed  = "failed"
)

const (
	StorageModeDatabase = "database"
	StorageModeCalendar = "calendar"
)

const (
	// DateLayout is the wire format for dates in the API and in blocked slots.
	DateLayout = "2006-01-02"
	// TimeLayout is the wire format for slot start times.
	TimeLayout = "15:04"
	// DisplayDateLayout is used in customer-facing messages.
	DisplayDateLayout = "02/01/2006"
)

const (
	DefaultTimezone           = "Asia/Jerusalem"
	DefaultSlotStepMinutes    = 30
	DefaultBookingHorizonDays = 30
	DefaultMaxActiveBookings  = 2

	// DefaultEveningReminderHour sends DAY_BEFORE reminders for tomorrow.
	DefaultEveningReminderHour = 20
	// DefaultMorningReminderHour sends DAY_OF reminders for today.
	DefaultMorningReminderHour = 8

	DefaultStaleClaimMinutes = 10

	// MaxClaimErrorLength bounds the error text stored on a failed claim.
	MaxClaimErrorLength = 500

	DefaultOTPLength          = 6
	DefaultOTPExpiryMinutes   = 5
	DefaultOTPMaxAttempts     = 3
	DefaultOTPCooldownMinutes = 15

	DefaultCacheTTLSeconds = 60

	// MaxGalleryUploadBytes limits admin gallery uploads to 5 MB.
	MaxGalleryUploadBytes = 5 * 1024 * 1024

	// CancelSameDayBlocked is the error_code returned for same-day cancellations.
	CancelSameDayBlocked = "CANCEL_SAME_DAY_BLOCKED"
)
