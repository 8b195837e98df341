// README: Common identifier type used across modules.
package types

import "github.com/google/uuid"

type ID string

// NewID returns a random identifier in canonical UUID form.
func NewID() ID {
	return ID(uuid.NewString())
}
