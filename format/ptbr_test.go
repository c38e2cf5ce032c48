package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMoeda(t *testing.T) {
	valor := 1234.5
	assert.Equal(t, "R$ 1.234,50", Moeda(&valor))
	assert.Equal(t, "R$ 0,00", Moeda(nil))
	assert.Equal(t, "R$ 0,00", MoedaValor(0))
	assert.Equal(t, "R$ 32,00", MoedaValor(32))
	assert.Equal(t, "R$ 1.234.567,89", MoedaValor(1234567.89))
}

func TestCNPJ(t *testing.T) {
	assert.Equal(t, "12.345.678/0001-95", CNPJ("12345678000195"))
	assert.Equal(t, "12.345.678/0001-95", CNPJ("12.345.678/0001-95"))
	assert.Equal(t, "", CNPJ(""))
	// Wrong length comes back as bare digits
	assert.Equal(t, "1234567", CNPJ("12.34567"))
}

func TestCPF(t *testing.T) {
	assert.Equal(t, "123.456.789-01", CPF("12345678901"))
	assert.Equal(t, "123.456.789-01", CPF("123.456.789-01"))
	assert.Equal(t, "", CPF(""))
	assert.Equal(t, "12345", CPF("12345"))
}

func TestTelefone(t *testing.T) {
	assert.Equal(t, "(41) 99999-1234", Telefone("41999991234"))
	assert.Equal(t, "(41) 3333-1234", Telefone("4133331234"))
	assert.Equal(t, "(41) 99999-1234", Telefone("(41) 99999-1234"))
	assert.Equal(t, "", Telefone(""))
	assert.Equal(t, "123", Telefone("123"))
}

func TestData(t *testing.T) {
	ts := time.Date(2026, time.August, 28, 14, 30, 5, 0, time.UTC)
	assert.Equal(t, "28/08/2026", Data(ts))
	assert.Equal(t, "28/08/2026, 14:30:05", DataHora(ts))
	assert.Equal(t, "", Data(time.Time{}))
	assert.Equal(t, "", DataHora(time.Time{}))
}
