package mmap

// AccessPattern provides hints to the kernel about how the data will be accessed.
type AccessPattern int

const (
	// AccessDefault is the default access pattern (no specific advice).
	AccessDefault AccessPattern = iota
	// AccessSequential expects data to be accessed sequentially.
	AccessSequential
	// AccessRandom expects data to be accessed randomly.
	AccessRandom
	// AccessWillNeed expects data to be accessed in the near future.
	AccessWillNeed
	// AccessDontNeed expects data to not be accessed in the near future.
	AccessDontNeed
)

// Mode is the access mode of a Handle or Mapping.
type Mode int

const (
	// ReadOnly maps with PROT_READ over an O_RDONLY descriptor.
	ReadOnly Mode = iota
	// ReadWrite maps with PROT_READ|PROT_WRITE over an O_RDWR descriptor.
	ReadWrite
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	default:
		return "unknown"
	}
}

// mapOptions are the optional mapping attributes. After osMap they
// describe what the platform actually applied.
type mapOptions struct {
	lock     bool
	populate bool
}

// AddressOf converts a bit position into the byte index and mask that
// address it: byte bit/8, mask 1<<(bit%8).
func AddressOf(bit uint64) (index int64, mask byte) {
	return int64(bit >> 3), byte(1) << (bit & 7)
}
