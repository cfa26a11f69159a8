package passchange

import "unicode"

// Strength is advisory UI feedback; it never blocks a change.
type Strength struct {
	Score    int      // 0..4
	Feedback []string
}

// CheckStrength scores a password 0-4 from length (>=8, >=12), mixed case,
// digits, and symbols.
func CheckStrength(pw string) Strength {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	if len(pw) < MinPasswordLen {
		return Strength{Score: 0, Feedback: []string{"Use at least 8 characters"}}
	}

	score := 1
	var fb []string
	if len(pw) >= 12 {
		score++
	} else {
		fb = append(fb, "12 or more characters is stronger")
	}
	if hasUpper && hasLower {
		score++
	} else {
		fb = append(fb, "Mix upper and lower case letters")
	}
	if hasDigit {
		score++
	} else {
		fb = append(fb, "Add digits")
	}
	if hasSymbol {
		score++
	} else {
		fb = append(fb, "Add symbols")
	}
	if score > 4 {
		score = 4
	}
	if score == 4 {
		fb = []string{"Very strong password"}
	}
	return Strength{Score: score, Feedback: fb}
}
