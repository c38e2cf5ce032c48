// Package format renders values the way Brazilian users expect: BRL
// currency, document masks and pt-BR date forms.
package format

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// Moeda renders a BRL amount: Moeda(1234.5) == "R$ 1.234,50". A nil value
// renders as zero.
func Moeda(valor *float64) string {
	v := 0.0
	if valor != nil {
		v = *valor
	}
	return printer.Sprintf("R$ %v", number.Decimal(v,
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	))
}

// MoedaValor renders a BRL amount from a plain float
func MoedaValor(valor float64) string {
	return Moeda(&valor)
}

// CNPJ masks a 14-digit company id: "12345678000195" becomes
// "12.345.678/0001-95". Non-digits are stripped first; anything that is
// not 14 digits comes back unmasked.
func CNPJ(cnpj string) string {
	digits := onlyDigits(cnpj)
	if len(digits) != 14 {
		return digits
	}
	return digits[0:2] + "." + digits[2:5] + "." + digits[5:8] + "/" + digits[8:12] + "-" + digits[12:14]
}

// CPF masks an 11-digit person id: "12345678901" becomes "123.456.789-01"
func CPF(cpf string) string {
	digits := onlyDigits(cpf)
	if len(digits) != 11 {
		return digits
	}
	return digits[0:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:11]
}

// Telefone masks a phone number, accepting both the 11-digit mobile form
// "(41) 99999-1234" and the 10-digit landline form "(41) 3333-1234"
func Telefone(telefone string) string {
	digits := onlyDigits(telefone)
	switch len(digits) {
	case 11:
		return "(" + digits[0:2] + ") " + digits[2:7] + "-" + digits[7:11]
	case 10:
		return "(" + digits[0:2] + ") " + digits[2:6] + "-" + digits[6:10]
	default:
		return digits
	}
}

// Data renders a date as dd/mm/aaaa. The zero time renders empty.
func Data(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

// DataHora renders a timestamp as dd/mm/aaaa, hh:mm:ss
func DataHora(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006, 15:04:05")
}

func onlyDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
