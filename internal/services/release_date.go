package services

import (
	"time"
)

const (
	DefaultCoolingOff   = 48 * time.Hour
	DefaultCheckoutHour = 11
)

// ReleasePolicy holds the constants used to derive when escrowed funds become releasable.
type ReleasePolicy struct {
	CoolingOff   time.Duration
	CheckoutHour int
	// Location is the calendar booking dates are interpreted in. Nil keeps the date's own location.
	Location *time.Location
}

func DefaultReleasePolicy() ReleasePolicy {
	return ReleasePolicy{CoolingOff: DefaultCoolingOff, CheckoutHour: DefaultCheckoutHour}
}

// ComputeReleaseDate returns the instant after which escrowed funds may be released.
//
// Hourly bookings end at the start of the booking day plus the latest booked hour plus one.
// Daily bookings end durationDays after the booking date at the checkout hour; durationDays
// below 1 counts as 1. The cooling-off period is added to the end of the stay.
func (p ReleasePolicy) ComputeReleaseDate(bookingDate time.Time, bookedHours []int, durationDays int) time.Time {
	if p.Location != nil {
		bookingDate = bookingDate.In(p.Location)
	}
	y, m, d := bookingDate.Date()
	loc := bookingDate.Location()

	var end time.Time
	if len(bookedHours) > 0 {
		maxHour := bookedHours[0]
		for _, h := range bookedHours[1:] {
			if h > maxHour {
				maxHour = h
			}
		}
		end = time.Date(y, m, d, maxHour+1, 0, 0, 0, loc)
	} else {
		if durationDays < 1 {
			durationDays = 1
		}
		end = time.Date(y, m, d+durationDays, p.CheckoutHour, 0, 0, 0, loc)
	}

	return end.Add(p.CoolingOff)
}

// ComputeReleaseDate applies the default policy in the booking date's own location.
func ComputeReleaseDate(bookingDate time.Time, bookedHours []int, durationDays int) time.Time {
	return DefaultReleasePolicy().ComputeReleaseDate(bookingDate, bookedHours, durationDays)
}
