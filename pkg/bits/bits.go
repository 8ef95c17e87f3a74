package bits

// Val returns the value of the bit at the given index.
func Val(b uint32, i uint8) uint32 {
	return (b >> i) & 1
}

// Reset resets the bit at the given index.
func Reset(b uint32, i uint8) uint32 {
	return b &^ (1 << i)
}

// Set sets the bit at the given index.
func Set(b uint32, i uint8) uint32 {
	return b | (1 << i)
}

// Test tests the bit at the given index.
func Test(b uint32, i uint8) bool {
	return (b>>i)&1 != 0
}

// Mask returns a mask with a single bit set at the given index.
func Mask(i uint8) uint32 {
	return 1 << i
}
