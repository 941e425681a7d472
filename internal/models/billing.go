package models

// BillingData holds the CFDI (tax invoice) details a customer provides when
// they ask for an invoice.
type BillingData struct {
	RFC              string `bson:"rfc" json:"rfc"`
	RazonSocial      string `bson:"razonSocial" json:"razon_social"`
	CPFiscal         string `bson:"cpFiscal" json:"cp_fiscal"`
	RegimenFiscal    string `bson:"regimenFiscal" json:"regimen_fiscal"`
	UsoCFDI          string `bson:"usoCfdi" json:"uso_cfdi"`
	EmailFacturacion string `bson:"emailFacturacion" json:"email_facturacion"`
}

// QuoteSelection identifies the carrier service picked by the rating service.
type QuoteSelection struct {
	Proveedor      string `bson:"proveedor" json:"proveedor"`
	CodeServicio   string `bson:"codeServicio" json:"code_servicio"`
	NombreServicio string `bson:"nombreServicio" json:"nombre_servicio"`
	CourierID      string `bson:"courierId" json:"courier_id"`
}

// ShippingQuote is the rating service answer for one destination.
type ShippingQuote struct {
	ShippingCost float64         `bson:"shippingCost" json:"shipping_cost"`
	Selected     *QuoteSelection `bson:"selected,omitempty" json:"selected,omitempty"`
}
