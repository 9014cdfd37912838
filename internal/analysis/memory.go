package analysis

// FlatMemory is a contiguous byte image mapped at Base.
type FlatMemory struct {
	Base uint64
	Data []byte
}

func (m *FlatMemory) ReadMemory(addr uint64, n int) ([]byte, error) {
	if addr < m.Base || addr-m.Base >= uint64(len(m.Data)) || n <= 0 {
		return nil, nil
	}
	off := addr - m.Base
	end := min(off+uint64(n), uint64(len(m.Data)))
	return m.Data[off:end], nil
}
