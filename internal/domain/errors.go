package domain

import (
	"errors"

	"github.com/adirsaban8-oss/ADIRS/internal/models"
)

// Kind classifies an error for transport mapping.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindForbidden
	KindNotFound
	KindRateLimited
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is a user-facing failure. Message is localized and safe to show;
// Err holds the underlying cause for logs only.
type Error struct {
	Kind     Kind
	Code     string
	Message  string
	Existing []*models.Appointment
	Err      error

	root *Error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether e was derived from the sentinel target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.root == nil {
		return false
	}
	return e.root == t.root
}

// With returns a copy of e wrapping cause.
func (e *Error) With(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// WithExisting returns a copy of e carrying the conflicting appointments.
func (e *Error) WithExisting(appts []*models.Appointment) *Error {
	cp := *e
	cp.Existing = appts
	return &cp
}

// WithMessage returns a copy of e with a different user-facing message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// KindOf returns the Kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func newErr(kind Kind, code, msg string) *Error {
	e := &Error{Kind: kind, Code: code, Message: msg}
	e.root = e
	return e
}

// Booking
var (
	ErrMissingField     = newErr(KindValidation, "", "חסרים פרטים")
	ErrInvalidDate      = newErr(KindValidation, "", "תאריך לא תקין. יש להשתמש בפורמט YYYY-MM-DD")
	ErrInvalidTime      = newErr(KindValidation, "", "שעה לא תקינה")
	ErrInvalidPhone     = newErr(KindValidation, "", "מספר טלפון לא תקין")
	ErrOutsideHorizon   = newErr(KindValidation, "", "ניתן להזמין תור עד 30 יום קדימה בלבד.")
	ErrPastDate         = newErr(KindValidation, "", "לא ניתן להזמין תור לתאריך שעבר")
	ErrUnknownService   = newErr(KindValidation, "", "שירות לא קיים")
	ErrOffGrid          = newErr(KindValidation, "", "השעה שנבחרה אינה בשעות הפעילות")
	ErrCapExceeded      = newErr(KindConflict, "", "כבר יש לך 2 תורים עתידיים. ניתן להזמין תור חדש רק לאחר שאחד מהם יעבור או יבוטל.")
	ErrSlotTaken        = newErr(KindConflict, "", "התור כבר לא פנוי. נא לבחור שעה אחרת.")
	ErrBookingFailed    = newErr(KindInternal, "", "שגיאה ביצירת התור במערכת. נסי שוב.")
	ErrSlotsFailed      = newErr(KindInternal, "", "שגיאה בקבלת שעות פנויות")
	ErrCustomerFailed   = newErr(KindInternal, "", "שגיאה ביצירת משתמש. נסי שוב.")
	ErrStoreUnavailable = newErr(KindUnavailable, "", "Database not available")
)

// Cancellation
var (
	ErrMissingRef          = newErr(KindValidation, "", "מזהה תור חסר")
	ErrAppointmentNotFound = newErr(KindNotFound, "", "התור לא נמצא")
	ErrSameDayCancel       = newErr(KindForbidden, models.CancelSameDayBlocked, "לא ניתן לבטל תור ביום התור עצמו")
	ErrInvalidTransition   = newErr(KindConflict, "", "התור כבר בוטל או הושלם")
	ErrCancelFailed        = newErr(KindInternal, "", "שגיאה בביטול התור")
)

// Customers
var (
	ErrCustomerNotFound = newErr(KindNotFound, "", "הלקוח/ה לא נמצא/ה")
	ErrCustomerExists   = newErr(KindConflict, "", "מספר זה כבר רשום במערכת")
	ErrHasFutureAppts   = newErr(KindValidation, "has_future_appointments", "ללקוח/ה יש תורים עתידיים")
)

// OTP
var (
	ErrOTPCooldown     = newErr(KindRateLimited, "", "יותר מדי ניסיונות. נסי שוב בעוד 15 דקות")
	ErrOTPNotFound     = newErr(KindValidation, "", "לא נשלח קוד למספר זה. שלחי קוד חדש")
	ErrOTPExpired      = newErr(KindValidation, "", "הקוד פג תוקף. שלחי קוד חדש")
	ErrOTPWrongCode    = newErr(KindValidation, "", "קוד שגוי")
	ErrOTPLocked       = newErr(KindValidation, "", "יותר מדי ניסיונות שגויים. נסי שוב בעוד 15 דקות")
	ErrTechnical       = newErr(KindInternal, "", "שגיאה טכנית. נסי שוב")
	ErrTooManyRequests = newErr(KindRateLimited, "", "יותר מדי בקשות. נסי שוב מאוחר יותר.")
)

// Calendar payloads
var (
	// ErrMalformedPayload marks a calendar event whose description is not a booking payload.
	ErrMalformedPayload = errors.New("malformed appointment payload")
	ErrClaimNotFound    = errors.New("reminder claim not found")
	// ErrCalendarDisabled is returned by calendar-backed components when no calendar is configured.
	ErrCalendarDisabled = errors.New("calendar is not configured")
)
