//go:build !linux

package flash

// OpenMTD is only available on Linux.
func OpenMTD(path string) (Device, error) {
	return nil, ErrUnsupported
}

// MTDOpener returns an Opener that always fails off Linux.
func MTDOpener(path string) Opener {
	return func() (Device, error) {
		return OpenMTD(path)
	}
}
