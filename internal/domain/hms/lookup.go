package hms

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Mapping links a vendor booking reference to the OMS booking id
type Mapping struct {
	VendorCode      string    `json:"vendor_code"`
	VendorBookingID string    `json:"vendor_booking_id"`
	OMSBookingID    string    `json:"oms_booking_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// Lookup resolves vendor booking references through the hotel management system mapping.
// A reference without a mapping is reported with found=false and a nil error.
type Lookup interface {
	Resolve(ctx context.Context, vendorCode, vendorBookingID string) (omsBookingID string, found bool, err error)
}

// ErrLookupUnavailable indicates the mapping source could not answer
type ErrLookupUnavailable struct {
	VendorCode      string
	VendorBookingID string
	Err             error
}

func (e ErrLookupUnavailable) Error() string {
	return fmt.Sprintf("hms mapping lookup unavailable for %s/%s: %v", e.VendorCode, e.VendorBookingID, e.Err)
}

func (e ErrLookupUnavailable) Unwrap() error {
	return e.Err
}

// Is matches any ErrLookupUnavailable regardless of the booking it refers to
func (e ErrLookupUnavailable) Is(target error) bool {
	_, ok := target.(ErrLookupUnavailable)
	return ok
}

// IsUnavailable reports whether err came from an unavailable mapping source
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrLookupUnavailable{})
}

type timeoutLookup struct {
	next    Lookup
	timeout time.Duration
}

// WithTimeout bounds every Resolve call of next by timeout.
// Any failure, including the deadline, is reported as ErrLookupUnavailable.
func WithTimeout(next Lookup, timeout time.Duration) Lookup {
	return &timeoutLookup{next: next, timeout: timeout}
}

func (l *timeoutLookup) Resolve(ctx context.Context, vendorCode, vendorBookingID string) (string, bool, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	id, found, err := l.next.Resolve(ctx, vendorCode, vendorBookingID)
	if err != nil {
		if IsUnavailable(err) {
			return "", false, err
		}
		return "", false, ErrLookupUnavailable{VendorCode: vendorCode, VendorBookingID: vendorBookingID, Err: err}
	}
	return id, found, nil
}
