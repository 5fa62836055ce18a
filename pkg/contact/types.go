package contact

// FieldSchema maps destination custom-field names to field identifiers.
// Fetched fresh for every batch; never mutated after fetch.
type FieldSchema map[string]string

// Record is the destination-ready representation of one user: the
// reserved-field section (currently only the lowercased email) plus the
// custom-field section keyed by destination field identifier. Every key
// in CustomFields corresponds to an identifier present in the FieldSchema
// the record was reconciled against.
type Record struct {
	Email        string         `json:"email,omitempty"`
	CustomFields map[string]any `json:"custom_fields"`
}

// fieldDefinition is one entry of the field-definitions response.
type fieldDefinition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// fieldDefinitionsResponse is the success body of the field-definitions
// endpoint. An absent custom_fields list means no custom fields exist yet.
type fieldDefinitionsResponse struct {
	CustomFields []fieldDefinition `json:"custom_fields"`
}

// upsertRequest is the contacts upsert request body.
type upsertRequest struct {
	Contacts []Record `json:"contacts"`
}

// upsertResponse is the body returned by the contacts upsert endpoint.
// Both the 2xx and the 400 responses carry a job_id; the 400 response
// additionally carries per-contact error details.
type upsertResponse struct {
	JobID  string `json:"job_id"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}
