package logging

import "strings"

// MaskPhone hides all but the last four characters of a phone number.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// PhoneLast4 returns the last four characters of a phone number.
func PhoneLast4(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return phone[len(phone)-4:]
}
