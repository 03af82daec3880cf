package models

import (
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Multipart field names of the trigger endpoint
const (
	FormProviderName        = "provider_name"
	FormDataDomain          = "data_domain"
	FormSourceSchemaVersion = "source_schema_version"
	FormTargetSchemaVersion = "target_schema_version"
	FormGenerateMissingKey  = "generate_missing_key"
	FormInputFile           = "input_file"
)

var requestValidator = validator.New()

// HarmonizationRequest is the transient bundle submitted to the workflow engine.
// It is never persisted; the session keeps only its metadata.
type HarmonizationRequest struct {
	ProviderName        string `json:"provider_name" validate:"required"`
	DataDomain          string `json:"data_domain" validate:"required"`
	SourceSchemaVersion string `json:"source_schema_version" validate:"required"`
	TargetSchemaVersion string `json:"target_schema_version" validate:"required"`
	GenerateMissingKey  bool   `json:"generate_missing_key"`
	FileName            string `json:"file_name" validate:"required"`
	File                []byte `json:"-" validate:"required"`
}

// Validate checks that every field the engine needs is present
func (r *HarmonizationRequest) Validate() error {
	return requestValidator.Struct(r)
}

// FormFields returns the multipart form fields in submission order
func (r *HarmonizationRequest) FormFields() [][2]string {
	return [][2]string{
		{FormProviderName, r.ProviderName},
		{FormDataDomain, r.DataDomain},
		{FormSourceSchemaVersion, r.SourceSchemaVersion},
		{FormTargetSchemaVersion, r.TargetSchemaVersion},
		{FormGenerateMissingKey, strconv.FormatBool(r.GenerateMissingKey)},
	}
}
