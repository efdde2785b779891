package lead

import (
	"strings"
	"unicode"

	"nexx-gsm/core/catalog"
	"nexx-gsm/core/pricing"
	"nexx-gsm/internal/errors"
)

// Contact form limits
const (
	MinNameLength          = 2
	MinBookingPhoneDigits  = 10
	MinCallbackPhoneLength = 9
	CountryPrefix          = "+40"
)

// Field messages shown next to the form inputs
const (
	MsgNameRequired  = "Numele este obligatoriu (min. 2 caractere)"
	MsgPhoneRequired = "Telefonul este obligatoriu"
	MsgPhoneDigits   = "Telefonul trebuie să conțină cel puțin 10 cifre"
	MsgPhoneInvalid  = "Număr de telefon invalid"
)

// FieldErrors maps a form field to its message
type FieldErrors map[string]string

// Err returns a validation error carrying the fields, or nil
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(f))
	for _, field := range []string{"name", "phone"} {
		if m, ok := f[field]; ok {
			msgs = append(msgs, m)
		}
	}
	return errors.Validation(strings.Join(msgs, ". ")).WithContext("fields", map[string]string(f))
}

// ValidateBooking checks the booking form: name of at least two
// characters, phone with at least ten digits.
func ValidateBooking(b Booking) error {
	problems := FieldErrors{}
	if len([]rune(strings.TrimSpace(b.Name))) < MinNameLength {
		problems["name"] = MsgNameRequired
	}
	switch {
	case strings.TrimSpace(b.Phone) == "":
		problems["phone"] = MsgPhoneRequired
	case DigitCount(b.Phone) < MinBookingPhoneDigits:
		problems["phone"] = MsgPhoneDigits
	}
	return problems.Err()
}

// ValidateCallback checks the callback form: only the phone is required.
func ValidateCallback(c Callback) error {
	problems := FieldErrors{}
	if len(strings.TrimSpace(c.Phone)) < MinCallbackPhoneLength {
		problems["phone"] = MsgPhoneInvalid
	}
	return problems.Err()
}

// ValidateContact checks the optional contact attached to a quote: when
// anything is given, both fields must pass the booking rules.
func ValidateContact(c Contact) error {
	if strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.Phone) == "" {
		return nil
	}
	return ValidateBooking(Booking{Name: c.Name, Phone: c.Phone})
}

// DigitCount counts decimal digits in s
func DigitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// CleanPhone keeps digits and '+'
func CleanPhone(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '+' || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, s)
}

// InternationalPhone formats a Romanian number with the +40 prefix.
func InternationalPhone(s string) string {
	clean := CleanPhone(s)
	switch {
	case clean == "":
		return ""
	case strings.HasPrefix(clean, "07"):
		return CountryPrefix + clean[1:]
	case strings.HasPrefix(clean, "+"):
		return clean
	default:
		return CountryPrefix + clean
	}
}

// problemKeywords maps free-text problem descriptions to defects. Order
// matters: the first group with a hit wins.
var problemKeywords = []struct {
	defect   string
	keywords []string
}{
	{pricing.DefectScreen, []string{"ecran", "display", "spart", "crapat", "screen"}},
	{pricing.DefectBattery, []string{"baterie", "battery", "descarc", "incarc"}},
	{pricing.DefectCharging, []string{"port", "mufa", "charging"}},
	{pricing.DefectCamera, []string{"camer", "foto", "video"}},
	{pricing.DefectMotherboard, []string{"placa", "board", "nu porneste", "nu functioneaza"}},
	{pricing.DefectWater, []string{"apa", "lichid", "water", "udat"}},
	{pricing.DefectKeyboard, []string{"tastatura", "keyboard"}},
}

// DetectDefect guesses the canonical defect from a problem description.
func DetectDefect(problem string) (string, bool) {
	p := catalog.Normalize(problem)
	if p == "" {
		return "", false
	}
	for _, group := range problemKeywords {
		for _, kw := range group.keywords {
			if containsWord(p, kw) {
				return group.defect, true
			}
		}
	}
	return "", false
}

// containsWord matches kw at a word start so "apa" does not hit "capac".
func containsWord(s, kw string) bool {
	for i := 0; i+len(kw) <= len(s); i++ {
		if s[i:i+len(kw)] != kw {
			continue
		}
		if i == 0 || !unicode.IsLetter(rune(s[i-1])) {
			return true
		}
	}
	return false
}
