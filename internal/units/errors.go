package units

import "fmt"

// UnitError reports an unknown unit or a conversion across dimensions.
type UnitError struct {
	Unit      string
	Dimension Dimension
	Reason    string
}

func (e *UnitError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unit %q: %s", e.Unit, e.Reason)
	}
	return fmt.Sprintf("unknown %s unit %q", e.Dimension, e.Unit)
}

// MissingEnergyContentError reports a fuel with no default energy content and
// no caller-supplied override.
type MissingEnergyContentError struct {
	FuelType string
}

func (e *MissingEnergyContentError) Error() string {
	return fmt.Sprintf("no default energy content for fuel type %q and no override given", e.FuelType)
}
