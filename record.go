package cukai

// Field names of a persisted record, in column order.
const (
	FieldUserID     = "user_id"
	FieldICNumber   = "ic_number"
	FieldIncome     = "income"
	FieldTaxRelief  = "tax_relief"
	FieldTaxPayable = "tax_payable"
)

// RecordFields is the header row of the record store.
var RecordFields = []string{FieldUserID, FieldICNumber, FieldIncome, FieldTaxRelief, FieldTaxPayable}

// Record is one saved tax estimate.
type Record struct {
	UserID     string `json:"user_id"`
	ICNumber   string `json:"ic_number"`
	Income     Money  `json:"income"`
	TaxRelief  Money  `json:"tax_relief"`
	TaxPayable Money  `json:"tax_payable"`
}

// Row returns the record as field name -> value, amounts fixed to two decimals.
func (r Record) Row() map[string]string {
	return map[string]string{
		FieldUserID:     r.UserID,
		FieldICNumber:   r.ICNumber,
		FieldIncome:     r.Income.Fixed(),
		FieldTaxRelief:  r.TaxRelief.Fixed(),
		FieldTaxPayable: r.TaxPayable.Fixed(),
	}
}
