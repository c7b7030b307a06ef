package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-product-importflow/internal/catalog"
)

// MaxBatchSize caps how many products one request may submit.
const MaxBatchSize = 500

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// the marketplace rejects a product that repeats an attribute code
	v.RegisterStructValidation(productStructValidation, catalog.Product{})

	return v
}

func productStructValidation(sl validatorv10.StructLevel) {
	p := sl.Current().Interface().(catalog.Product)

	seen := make(map[string]int, len(p.Attributes))
	for i, a := range p.Attributes {
		if j, dup := seen[a.Code]; dup {
			sl.ReportError(p.Attributes, fmt.Sprintf("attributes[%d].code", i), fmt.Sprintf("Attributes[%d].Code", i),
				"unique_attribute_code", fmt.Sprintf("duplicates attributes[%d]", j))
			continue
		}
		seen[a.Code] = i
	}
}

// Product validates p and returns field errors keyed by struct namespace, or nil.
func Product(v *validatorv10.Validate, p catalog.Product) map[string]string {
	if err := v.Struct(p); err != nil {
		return validationErrorsToMap(err)
	}
	return nil
}
