package gpio

// Registers is 32-bit access to physical hardware registers.
type Registers interface {
	Read32(addr uint32) (uint32, error)
	Write32(addr uint32, val uint32) error
}
