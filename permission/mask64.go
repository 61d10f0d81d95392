package permission

// Mask64 is a 64-bit permission set. When the root bit is reserved the
// highest bit grants every permission.
type Mask64 uint64

const rootBit64 = 63

func (m *Mask64) Has(bit int, rootReserved bool) bool {
	if bit < 0 || bit >= 64 {
		return false
	}

	if rootReserved {
		if (*m & (1 << rootBit64)) != 0 {
			return true
		}
	}

	return (*m & (1 << bit)) != 0
}

func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= (1 << bit)
}

func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m &^= (1 << bit)
}

func (m *Mask64) Raw() uint64 {
	return uint64(*m)
}
