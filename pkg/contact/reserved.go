package contact

// ReservedFieldSet is the set of contact attributes the destination
// accepts natively, outside the dynamic custom-field schema. Fixed for
// the lifetime of the service.
type ReservedFieldSet map[string]struct{}

// Contains reports whether name is a reserved field.
func (s ReservedFieldSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

var reservedFieldNames = []string{
	"first_name",
	"last_name",
	"email",
	"alternate_emails",
	"address_line_1",
	"address_line_2",
	"city",
	"state_province_region",
	"postal_code",
	"country",
	"phone_number",
	"whatsapp",
	"line",
	"facebook",
	"unique_name",
	"lists",
	"created_at",
	"updated_at",
	"last_emailed",
	"last_clicked",
	"last_opened",
}

// ReservedFields returns the destination's reserved-field set.
func ReservedFields() ReservedFieldSet {
	set := make(ReservedFieldSet, len(reservedFieldNames))
	for _, name := range reservedFieldNames {
		set[name] = struct{}{}
	}
	return set
}
