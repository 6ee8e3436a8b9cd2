// Package validation checks request input before it reaches the services.
// Failures are reported as *apperrors.ValidationError so handlers map them
// to 400 the same way service-side validation is mapped.
package validation

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ndewijer/Investment-Ledger-Backend/internal/apperrors"
)

// ValidateUUID checks if a string is a valid UUID
func ValidateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidUUID, id)
	}
	return nil
}
