package checkout

import (
	"strings"

	"storefront/internal/models"
	"storefront/internal/validation"
)

type billingForm struct {
	RFC              string `json:"rfc" validate:"required,rfc_length,rfc"`
	RazonSocial      string `json:"razon_social" validate:"required"`
	CPFiscal         string `json:"cp_fiscal" validate:"required,postal_code"`
	RegimenFiscal    string `json:"regimen_fiscal" validate:"required"`
	UsoCFDI          string `json:"uso_cfdi" validate:"required"`
	EmailFacturacion string `json:"email_facturacion" validate:"required,email"`
}

// NormalizeBilling trims the invoice fields and canonicalizes the RFC.
func NormalizeBilling(b models.BillingData) models.BillingData {
	return models.BillingData{
		RFC:              validation.NormalizeRFC(b.RFC),
		RazonSocial:      strings.TrimSpace(b.RazonSocial),
		CPFiscal:         strings.TrimSpace(b.CPFiscal),
		RegimenFiscal:    strings.TrimSpace(b.RegimenFiscal),
		UsoCFDI:          strings.ToUpper(strings.TrimSpace(b.UsoCFDI)),
		EmailFacturacion: strings.ToLower(strings.TrimSpace(b.EmailFacturacion)),
	}
}

// ValidateBilling returns per-field messages, or nil when the invoice data
// is complete.
func ValidateBilling(b models.BillingData) map[string]string {
	err := validation.Struct(billingForm{
		RFC:              b.RFC,
		RazonSocial:      b.RazonSocial,
		CPFiscal:         b.CPFiscal,
		RegimenFiscal:    b.RegimenFiscal,
		UsoCFDI:          b.UsoCFDI,
		EmailFacturacion: b.EmailFacturacion,
	})
	if err == nil {
		return nil
	}
	return fieldsOf(err)
}

func fieldsOf(err error) map[string]string {
	if fields := validation.Fields(err); len(fields) > 0 {
		return fields
	}
	return map[string]string{"form": err.Error()}
}
