package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"tvicl/server/internal/config"
	"tvicl/server/internal/models"
)

const (
	minYearBuilt       = 1900
	yearBuiltLookahead = 5
	defaultKitchens    = 1
)

// conditionalRule makes a field required when a condition on its siblings holds.
type conditionalRule struct {
	field   string
	applies func(d *models.PropertyDetails) bool
	present func(d *models.PropertyDetails) bool
	message string
}

var conditionalRules = []conditionalRule{
	{
		field:   "flatType",
		applies: func(d *models.PropertyDetails) bool { return d.PropertyType.IsApartmentLike() },
		present: func(d *models.PropertyDetails) bool { return d.FlatType != "" },
		message: "is required for apartment-like property types",
	},
	{
		field:   "transactionType",
		applies: func(d *models.PropertyDetails) bool { return d.ListingType == models.ListingTypeForSale },
		present: func(d *models.PropertyDetails) bool { return d.TransactionType != "" },
		message: "is required when listingType is For Sale",
	},
}

// PropertyValidator checks property payloads and fills in defaults.
// It never touches storage and does not modify its input.
type PropertyValidator struct {
	validate        *validator.Validate
	defaultCountry  string
	defaultCurrency string
	now             func() time.Time
}

// NewPropertyValidator creates a validator using the configured defaults.
// now may be nil, in which case the wall clock is used.
func NewPropertyValidator(cfg *config.Config, now func() time.Time) *PropertyValidator {
	if now == nil {
		now = time.Now
	}
	return &PropertyValidator{
		validate:        newStructValidator(),
		defaultCountry:  cfg.DefaultCountry,
		defaultCurrency: cfg.DefaultCurrency,
		now:             now,
	}
}

type enumValue interface{ IsValid() bool }
type enumOptions interface{ Options() []string }

// newStructValidator returns a validator reporting JSON field names and knowing the "enum" tag.
func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
		e, ok := fl.Field().Interface().(enumValue)
		return ok && e.IsValid()
	})
	return v
}

// collectViolations records every tag failure of s in verr. Only a non-field error
// (such as an invalid argument) is returned.
func collectViolations(v *validator.Validate, s any, verr *ValidationError) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	for _, fe := range fieldErrs {
		verr.add(fieldPath(fe), violationMessage(fe))
	}
	return nil
}

var requestValidator = newStructValidator()

// ValidateRequest checks a request or profile struct against its validate tags and
// returns a *ValidationError naming every failed field.
func ValidateRequest(s any) error {
	verr := &ValidationError{}
	if err := collectViolations(requestValidator, s, verr); err != nil {
		return err
	}
	return verr.orNil()
}

// Validate returns a normalized copy of details, or a *ValidationError listing every violation.
func (pv *PropertyValidator) Validate(details *models.PropertyDetails) (*models.PropertyDetails, error) {
	if details == nil {
		return nil, &ValidationError{Violations: []FieldViolation{{Field: "", Message: "payload is required"}}}
	}
	d, err := cloneDetails(details)
	if err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	if err := collectViolations(pv.validate, d, verr); err != nil {
		return nil, err
	}
	pv.checkRules(d, verr)
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	pv.normalize(d)
	return d, nil
}

func (pv *PropertyValidator) checkRules(d *models.PropertyDetails, verr *ValidationError) {
	for _, r := range conditionalRules {
		if r.applies(d) && !r.present(d) {
			verr.add(r.field, r.message)
		}
	}

	if d.YearBuilt != nil {
		maxYear := pv.now().Year() + yearBuiltLookahead
		if *d.YearBuilt < minYearBuilt || *d.YearBuilt > maxYear {
			verr.add("yearBuilt", fmt.Sprintf("must be between %d and %d", minYearBuilt, maxYear))
		}
	}

	if d.Location != nil && len(d.Location.Coordinates) == 2 {
		if lng := d.Location.Coordinates[0]; lng < -180 || lng > 180 {
			verr.add("location.coordinates[0]", "longitude must be between -180 and 180")
		}
		if lat := d.Location.Coordinates[1]; lat < -90 || lat > 90 {
			verr.add("location.coordinates[1]", "latitude must be between -90 and 90")
		}
	}

	primaries := 0
	for _, m := range d.Media {
		if m.IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		verr.add("media", "at most one item may be marked primary")
	}
}

func (pv *PropertyValidator) normalize(d *models.PropertyDetails) {
	now := pv.now().UTC()

	if d.Address.Country == "" {
		d.Address.Country = pv.defaultCountry
	}
	if d.Price.Currency == "" {
		d.Price.Currency = pv.defaultCurrency
	}
	if d.Kitchens == nil {
		k := defaultKitchens
		d.Kitchens = &k
	}
	if d.AvailableFrom == nil {
		d.AvailableFrom = &now
	}
	if d.Location != nil && d.Location.Type == "" {
		d.Location.Type = "Point"
	}
	for _, a := range []*models.Area{d.FloorSize, d.CarpetArea} {
		if a != nil && a.Unit == "" {
			a.Unit = models.AreaUnitSqft
		}
	}
	for i := range d.PaymentPlans {
		if d.PaymentPlans[i].Type == "" {
			d.PaymentPlans[i].Type = models.PaymentPlanMilestone
		}
		if d.PaymentPlans[i].Currency == "" {
			d.PaymentPlans[i].Currency = pv.defaultCurrency
		}
	}
	if d.RentalDetails != nil && d.RentalDetails.RentFrequency == "" {
		d.RentalDetails.RentFrequency = models.FrequencyMonthly
	}
	if d.Utilities != nil {
		if d.Utilities.WaterSupply == "" {
			d.Utilities.WaterSupply = models.WaterSupplyMunicipal
		}
		if d.Utilities.PowerBackup == "" {
			d.Utilities.PowerBackup = models.PowerBackupNone
		}
	}
	if d.Amenities == nil {
		d.Amenities = []string{}
	}
	if d.Media == nil {
		d.Media = []models.Media{}
	}
	EnsurePrimaryMedia(d.Media)
	for i := range d.Media {
		if d.Media[i].UploadedAt == nil {
			d.Media[i].UploadedAt = &now
		}
	}
	d.Tags = normalizeTags(d)
}

// EnsurePrimaryMedia marks the first item primary when none is.
func EnsurePrimaryMedia(media []models.Media) {
	for _, m := range media {
		if m.IsPrimary {
			return
		}
	}
	if len(media) > 0 {
		media[0].IsPrimary = true
	}
}

// normalizeTags lowercases and dedupes the given tags, deriving them when none were given.
func normalizeTags(d *models.PropertyDetails) []string {
	if len(d.Tags) == 0 {
		return derivedTags(d)
	}
	return cleanTags(d.Tags)
}

// derivedTags builds tags from the classification, address and amenities.
func derivedTags(d *models.PropertyDetails) []string {
	return cleanTags(append([]string{string(d.PropertyType), string(d.ListingType), d.Address.City, d.Address.Area}, d.Amenities...))
}

func cleanTags(src []string) []string {
	seen := make(map[string]bool, len(src))
	tags := make([]string, 0, len(src))
	for _, t := range src {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}

func cloneDetails(d *models.PropertyDetails) (*models.PropertyDetails, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("cloning property payload: %w", err)
	}
	var out models.PropertyDetails
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("cloning property payload: %w", err)
	}
	return &out, nil
}

// fieldPath drops the root struct name from the namespace: "PropertyDetails.media[0].url" -> "media[0].url".
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}

func violationMessage(fe validator.FieldError) string {
	kind := fe.Kind()
	collection := kind == reflect.Slice || kind == reflect.Array || kind == reflect.Map
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "max":
		if collection {
			return "must contain at most " + fe.Param() + " items"
		}
		return "must be at most " + fe.Param() + " characters"
	case "min":
		if collection {
			return "must contain at least " + fe.Param() + " items"
		}
		return "must be at least " + fe.Param() + " characters"
	case "len":
		return "must contain exactly " + fe.Param() + " items"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "eq":
		return "must be " + fe.Param()
	case "enum":
		if o, ok := fe.Value().(enumOptions); ok {
			return "must be one of: " + strings.Join(o.Options(), ", ")
		}
		return "is not an allowed value"
	}
	return "failed " + fe.Tag() + " validation"
}

// ViolationFromJSONError turns a JSON type mismatch into a field violation so a
// malformed payload is reported like any other invalid field.
func ViolationFromJSONError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return &ValidationError{Violations: []FieldViolation{{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
		}}}
	}
	return &ValidationError{Violations: []FieldViolation{{Field: "", Message: "malformed JSON payload"}}}
}
