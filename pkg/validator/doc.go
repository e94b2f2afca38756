// Package validator builds declarative validation from small Rule values.
//
// Each rule pairs a Check with the error reported when it fails. Apply runs
// the rules and aggregates failures into ValidationErrors, which implements
// error and can be turned into per-field details with Map:
//
//	err := validator.Apply(
//		validator.RequiredString("tier", req.Tier),
//		validator.MaxLenString("tier", req.Tier, 64),
//		validator.Valid("billing_period", periodOK, "must be monthly or yearly"),
//	)
//	if errs := validator.ExtractValidationErrors(err); errs != nil {
//		// errs.Map() -> {"tier": ["field is required"]}
//	}
package validator
