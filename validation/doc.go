// Package validation checks decoded platform records and outgoing
// descriptors.
//
// Records are validated through struct tags:
//
//	type Chat struct {
//	    ID string `json:"id" validate:"required"`
//	}
//	err := validation.Struct(chat)
//
// Builders collect field problems programmatically:
//
//	v := validation.New()
//	v.Required("file_id", id)
//	return v.Err()
package validation
