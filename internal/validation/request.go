// Package validation checks report run requests before a job is created.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// dateLayout is the portal's MM/DD/YYYY date format.
const dateLayout = "01/02/2006"

var datePattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/(0[1-9]|[12]\d|3[01])/(\d{4})$`)

// RunRequest is the payload required to start a report retrieval job.
type RunRequest struct {
	Username  string `json:"username" validate:"required"`
	Password  string `json:"password" validate:"required"`
	StartDate string `json:"start_date" validate:"required,mmddyyyy"`
	EndDate   string `json:"end_date" validate:"required,mmddyyyy"`
	Debug     bool   `json:"debug,omitempty"`
}

// validate is shared across requests; RegisterValidation is not safe to call
// concurrently with Struct, so registration happens once here.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("mmddyyyy", func(fl validator.FieldLevel) bool {
		return datePattern.MatchString(fl.Field().String())
	})
	return v
}

// fieldMessages maps field+tag pairs to the reasons surfaced to callers.
var fieldMessages = map[string]string{
	"Username.required":  "Username is required.",
	"Password.required":  "Password is required.",
	"StartDate.required": "Start date must be in MM/DD/YYYY format.",
	"StartDate.mmddyyyy": "Start date must be in MM/DD/YYYY format.",
	"EndDate.required":   "End date must be in MM/DD/YYYY format.",
	"EndDate.mmddyyyy":   "End date must be in MM/DD/YYYY format.",
}

// Normalize trims surrounding whitespace from every field except the
// password, which is passed to the portal verbatim.
func (r *RunRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.EndDate = strings.TrimSpace(r.EndDate)
}

// Validate returns every reason the request must be rejected, or nil if the
// request may start a job. The date ordering check only runs once both dates
// are well-formed.
func (r *RunRequest) Validate() []string {
	var reasons []string

	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []string{"Request could not be validated."}
		}
		for _, fe := range fieldErrs {
			if msg, ok := fieldMessages[fe.StructField()+"."+fe.Tag()]; ok {
				reasons = append(reasons, msg)
			}
		}
		return reasons
	}

	start, startErr := time.Parse(dateLayout, r.StartDate)
	end, endErr := time.Parse(dateLayout, r.EndDate)
	if startErr != nil {
		reasons = append(reasons, "Start date is not a valid calendar date.")
	}
	if endErr != nil {
		reasons = append(reasons, "End date is not a valid calendar date.")
	}
	if startErr == nil && endErr == nil && start.After(end) {
		reasons = append(reasons, "Start date must be on or before end date.")
	}

	return reasons
}
