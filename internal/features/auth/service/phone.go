package service

import (
	"strings"
	"unicode"

	apperrors "contestlet-backend/internal/common/errors"
)

// NormalizePhone canonicalizes a phone number to E.164. Separators and
// parentheses are stripped; a bare 10-digit number is assumed to be US and
// gets the +1 prefix.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	hasPlus := false
	for i, r := range raw {
		switch {
		case r == '+' && i == 0:
			hasPlus = true
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// separator, skip
		default:
			return "", apperrors.New(apperrors.ErrCodeInvalidPhone, "phone number contains invalid characters")
		}
	}

	d := digits.String()
	switch {
	case hasPlus:
		if len(d) < 8 || len(d) > 15 {
			return "", apperrors.New(apperrors.ErrCodeInvalidPhone, "phone number has wrong length")
		}
		return "+" + d, nil
	case len(d) == 10:
		return "+1" + d, nil
	case len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	default:
		return "", apperrors.New(apperrors.ErrCodeInvalidPhone, "phone number must be E.164 or a 10-digit US number")
	}
}
