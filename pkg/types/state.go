package types

// Lifecycle states of entity and field configurations. A configuration is
// created New, may be flagged for update by an administrator, becomes Active
// once the compiler has processed it, and ends in Deleted.
const (
	StateNew     = "New"
	StateUpdated = "Requires update"
	StateActive  = "Active"
	StateDeleted = "Deleted"
)

// validStates is the set of recognized state values.
var validStates = map[string]bool{
	StateNew:     true,
	StateUpdated: true,
	StateActive:  true,
	StateDeleted: true,
}

// IsValidState reports whether s is a recognized lifecycle state.
func IsValidState(s string) bool {
	return validStates[s]
}

// DeriveIsDeleted reports whether a configuration in the given state is
// deleted. It is the only source of the is_deleted marker.
func DeriveIsDeleted(state string) bool {
	return state == StateDeleted
}

// Advance returns the state a configuration moves to after a regeneration
// pass. Every state other than Deleted becomes Active; Deleted is terminal.
func Advance(state string) string {
	if state == StateDeleted {
		return StateDeleted
	}
	return StateActive
}

// Lifecycle is the state part shared by entity and field configurations.
type Lifecycle struct {
	State     string `json:"state" yaml:"state"`
	IsDeleted bool   `json:"is_deleted" yaml:"is_deleted"`
}

// AdvanceState moves the lifecycle one regeneration step forward and
// re-derives IsDeleted. Applying it repeatedly yields the same result, and a
// Deleted lifecycle is never brought back to Active.
func (l *Lifecycle) AdvanceState() {
	l.State = Advance(l.State)
	l.IsDeleted = DeriveIsDeleted(l.State)
}

// MarkDeleted moves the lifecycle to Deleted.
func (l *Lifecycle) MarkDeleted() {
	l.State = StateDeleted
	l.IsDeleted = true
}

// MarkUpdated flags the lifecycle for the next regeneration. A Deleted
// lifecycle is left unchanged.
func (l *Lifecycle) MarkUpdated() {
	if l.State == StateDeleted {
		return
	}
	l.State = StateUpdated
	l.IsDeleted = false
}

// setState validates and assigns a state, keeping IsDeleted derived.
func (l *Lifecycle) setState(state string) error {
	if !IsValidState(state) {
		return ErrInvalidState
	}
	l.State = state
	l.IsDeleted = DeriveIsDeleted(state)
	return nil
}
