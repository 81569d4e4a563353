package member

import "strings"

// DefaultCountryCode is prepended to national numbers.
const DefaultCountryCode = "+91"

// CanonicalPhone turns caller ids and admin input into +<country><number>.
func CanonicalPhone(raw, countryCode string) string {
	phone := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	digits := strings.TrimPrefix(countryCode, "+")
	if strings.HasPrefix(phone, digits) && len(phone) > 10 {
		return "+" + phone
	}
	return countryCode + strings.TrimPrefix(phone, "0")
}

// LocalPhone strips the country code, which is the form the SMS gateway expects.
func LocalPhone(phone, countryCode string) string {
	return strings.TrimPrefix(phone, countryCode)
}
