// Package eprom implements the panel's paged EPROM mirror (spec §4.6)
// and the decoder that turns it into the panel data model (spec §4.7).
package eprom

// pageSize is the fixed page width the panel transfers download blocks
// in (spec §4.6).
const pageSize = 256

// Map is a sparse page(0-255) x 256-byte mirror of the panel's EPROM,
// populated incrementally as download blocks arrive. Unwritten bytes
// read back as 0xFF (spec §4.6).
type Map struct {
	pages map[byte]*[pageSize]byte
}

// NewMap returns an empty EPROM mirror.
func NewMap() *Map {
	return &Map{pages: make(map[byte]*[pageSize]byte)}
}

func (m *Map) page(p byte) *[pageSize]byte {
	pg, ok := m.pages[p]
	if !ok {
		pg = &[pageSize]byte{}
		for i := range pg {
			pg[i] = 0xFF
		}
		m.pages[p] = pg
	}
	return pg
}

// Write stores data at the given page, starting at offset within that
// page. A write that runs past the end of the page wraps onto
// subsequent pages (spec §4.6 "wrap-around writes").
func (m *Map) Write(page byte, offset int, data []byte) {
	p, o := page, offset
	for _, b := range data {
		for o >= pageSize {
			o -= pageSize
			p++
		}
		m.page(p)[o] = b
		o++
	}
}

// Read returns length bytes starting at page/offset, spanning pages as
// needed (spec §4.6 "paged reads spanning multiple pages"). Bytes never
// written read back as 0xFF.
func (m *Map) Read(page byte, offset int, length int) []byte {
	out := make([]byte, length)
	p, o := page, offset
	for i := 0; i < length; i++ {
		for o >= pageSize {
			o -= pageSize
			p++
		}
		out[i] = m.page(p)[o]
		o++
	}
	return out
}

// ReadAbsolute treats (page, offset) as a flat address space, the
// addressing scheme download-block requests use (spec §4.6): address =
// page*256 + offset.
func (m *Map) ReadAbsolute(address, length int) []byte {
	page := byte((address / pageSize) & 0xFF)
	offset := address % pageSize
	return m.Read(page, offset, length)
}

// WriteAbsolute is the absolute-addressed counterpart to ReadAbsolute.
func (m *Map) WriteAbsolute(address int, data []byte) {
	page := byte((address / pageSize) & 0xFF)
	offset := address % pageSize
	m.Write(page, offset, data)
}

// Complete reports whether every page in pages has been written at
// least once.
func (m *Map) Complete(pages []byte) bool {
	for _, p := range pages {
		if _, ok := m.pages[p]; !ok {
			return false
		}
	}
	return true
}
