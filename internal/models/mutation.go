package models

// MutationMode is the requested change to one cart item's quantity
type MutationMode string

const (
	ModeIncrement MutationMode = "INCREMENT" // current + value
	ModeDecrement MutationMode = "DECREMENT" // current - value, removed at 0
	ModeSet       MutationMode = "SET"       // quantity := value, removed at 0
	ModeClear     MutationMode = "CLEAR"     // quantity := 0, removed
	ModeMax       MutationMode = "MAX"       // quantity := stock ceiling
)

// CartAction is the effect a mutation had on the cart item
type CartAction string

const (
	ActionAdded     CartAction = "ADDED"
	ActionUpdated   CartAction = "UPDATED"
	ActionRemoved   CartAction = "REMOVED"
	ActionUnchanged CartAction = "UNCHANGED"
)

// modeStockChecked declares which modes validate the resulting quantity
// against the resolved option's stock ceiling. CLEAR can never overshoot.
var modeStockChecked = map[MutationMode]bool{
	ModeIncrement: true,
	ModeDecrement: true,
	ModeSet:       true,
	ModeClear:     false,
	ModeMax:       true,
}

// modeRequiresPositiveValue declares which modes reject value <= 0
var modeRequiresPositiveValue = map[MutationMode]bool{
	ModeIncrement: true,
	ModeDecrement: true,
}

// Valid reports whether the mode is a known mutation mode.
func (m MutationMode) Valid() bool {
	_, ok := modeStockChecked[m]
	return ok
}

// ChecksStock reports whether the mode runs the stock ceiling check.
func (m MutationMode) ChecksStock() bool {
	return modeStockChecked[m]
}

// RequiresPositiveValue reports whether the mode rejects non-positive deltas.
func (m MutationMode) RequiresPositiveValue() bool {
	return modeRequiresPositiveValue[m]
}
