package patch

import (
	"errors"
	"fmt"
)

var (
	ErrSpecNotFound      = errors.New("spec not found")
	ErrDuplicateEntity   = errors.New("already exists")
	ErrInconsistentShape = errors.New("inconsistent shape")
	ErrIncompatibleUsage = errors.New("incompatible usage")
	ErrOccupiedSlot      = errors.New("slot already occupied")
	ErrMultilevelDerive  = errors.New("multilevel derive unsupported")
	ErrUnknownDirective  = errors.New("unknown directive")
)

func notFound(kind, spec, where string) error {
	return fmt.Errorf("%w: could not find %s %q in %s", ErrSpecNotFound, kind, spec, where)
}

func duplicate(kind, name, where string) error {
	return fmt.Errorf("%w: %s %s in %s", ErrDuplicateEntity, kind, name, where)
}

func inPeripheral(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("In peripheral %s: %w", name, err)
}

func inCluster(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("In cluster %s: %w", name, err)
}

func inRegister(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("In register %s: %w", name, err)
}

func inField(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("In field %s: %w", name, err)
}
