package models

import "strings"

const maskFill = "****"

// MaskPhone keeps the first four and last two characters.
func MaskPhone(phone *string) *string {
	if phone == nil || *phone == "" {
		return nil
	}
	p := *phone
	var masked string
	if len(p) <= 6 {
		masked = maskFill
	} else {
		masked = p[:4] + maskFill + p[len(p)-2:]
	}
	return &masked
}

// MaskEmail keeps the first two characters of the local part and the domain.
func MaskEmail(email *string) *string {
	if email == nil || *email == "" {
		return nil
	}
	local, domain, ok := strings.Cut(*email, "@")
	if !ok {
		masked := maskFill
		return &masked
	}
	if len(local) > 2 {
		local = local[:2]
	}
	masked := local + maskFill + "@" + domain
	return &masked
}
