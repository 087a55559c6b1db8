package lang

import "fmt"

// Message keys used for customer-facing payment notices and order notes.
const (
	MsgPaymentAuthorizationFailed = "payment.error.authorization"
	MsgPaymentFailed              = "payment.error.failed"
	MsgPaymentCanceled            = "payment.error.canceled"
	MsgPaymentUnknownError        = "payment.error.unknown"
)

// Catalog resolves message keys per language with fallback to Default.
type Catalog struct {
	messages map[string]map[string]string
}

// NewCatalog returns a catalog preloaded with the built-in payment messages.
func NewCatalog() *Catalog {
	return &Catalog{messages: map[string]map[string]string{
		"en": {
			MsgPaymentAuthorizationFailed: "The payment was not authorized. Please try again or choose another payment method.",
			MsgPaymentFailed:              "The payment failed. Please try again.",
			MsgPaymentCanceled:            "The payment was canceled.",
			MsgPaymentUnknownError:        "The payment could not be completed.",
		},
		"nb": {
			MsgPaymentAuthorizationFailed: "Betalingen ble ikke godkjent. Prøv igjen eller velg en annen betalingsmåte.",
			MsgPaymentFailed:              "Betalingen feilet. Vennligst prøv igjen.",
			MsgPaymentCanceled:            "Betalingen ble avbrutt.",
			MsgPaymentUnknownError:        "Betalingen kunne ikke fullføres.",
		},
		"sv": {
			MsgPaymentAuthorizationFailed: "Betalningen godkändes inte. Försök igen eller välj ett annat betalsätt.",
			MsgPaymentFailed:              "Betalningen misslyckades. Försök igen.",
			MsgPaymentCanceled:            "Betalningen avbröts.",
			MsgPaymentUnknownError:        "Betalningen kunde inte slutföras.",
		},
	}}
}

// Register adds or replaces a message for a language.
func (c *Catalog) Register(code, key, message string) error {
	normalized, err := Normalize(code)
	if err != nil {
		return err
	}
	if c.messages[normalized] == nil {
		c.messages[normalized] = map[string]string{}
	}
	c.messages[normalized][key] = message
	return nil
}

// Message returns the message for key in the requested language, trying the
// full tag, then its base language, then Default. Unknown keys come back as
// the key itself.
func (c *Catalog) Message(code, key string, args ...interface{}) string {
	format := c.lookup(code, key)
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func (c *Catalog) lookup(code, key string) string {
	candidates := []string{Default}
	if normalized, err := Normalize(code); err == nil {
		candidates = []string{normalized, Base(normalized), Default}
	}
	for _, candidate := range candidates {
		if msg, ok := c.messages[candidate][key]; ok {
			return msg
		}
	}
	return key
}
