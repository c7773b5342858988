package assignment

import "github.com/xelth-com/eckvideo/internal/models"

// Actor identifies who is performing an operation. It is always passed
// explicitly; the engine never reads identity from ambient state.
type Actor struct {
	Name string
	Role string
}

// SystemActor is used for writes made by the reclamation sweep.
var SystemActor = Actor{Name: "system", Role: models.RoleAdmin}

// IsAdmin reports whether the actor holds administrator privileges.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

func requireAdmin(actor Actor, op string) error {
	if !actor.IsAdmin() {
		return forbidden("%s requires administrator privileges", op)
	}
	return nil
}
