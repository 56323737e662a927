package sip

// HeaderTable is the ordered multimap operation set over a message's
// headers: insertion order is preserved across all names, and several
// headers may share a name. Repeated header lines and the comma-separated
// values of one line (e.g. two Via hops on one wire line) are both
// modeled as distinct entries in headerOrder.
//
// headers already stores headerOrder plus typed fast-access pointers;
// HeaderTable adds the generic name-indexed operations on top of it.
type HeaderTable interface {
	HasHeader(name string) bool

	PutNew(header Header)
	PutNewLazy(name string, make func() Header)
	PutFront(header Header)
	PutBack(header Header)

	Delete(name string)
	DeleteFront(name string)
	DeleteBack(name string)
	Drop(name string)

	Fetch(name string) (Header, bool)
	MustFetch(name string) Header
	FetchFront(name string) (Header, bool)
	FetchBack(name string) (Header, bool)

	Get(name string, def Header) Header

	Update(name string, fn func(Header) Header)
	UpdateFront(name string, fn func(Header) Header)
	UpdateBack(name string, fn func(Header) Header)

	PopFront(name string) (Header, bool)
	PopBack(name string) (Header, bool)

	GetAndUpdateFront(name string, fn func(Header) Header) (Header, bool)
	GetAndUpdateBack(name string, fn func(Header) Header) (Header, bool)
}

// HasHeader reports whether at least one header with this name exists.
func (hs *headers) HasHeader(name string) bool {
	return hs.getHeader(HeaderToLower(name)) != nil
}

// PutNew adds header only if no header with that name exists yet.
func (hs *headers) PutNew(header Header) {
	if hs.HasHeader(header.Name()) {
		return
	}
	hs.AppendHeader(header)
}

// PutNewLazy calls make() and inserts its result only if absent,
// avoiding the cost of constructing a header that won't be used.
func (hs *headers) PutNewLazy(name string, make func() Header) {
	if hs.HasHeader(name) {
		return
	}
	hs.AppendHeader(make())
}

// PutFront inserts header before every existing header of any name.
func (hs *headers) PutFront(header Header) {
	hs.PrependHeader(header)
}

// PutBack inserts header after every existing header of any name.
func (hs *headers) PutBack(header Header) {
	hs.AppendHeader(header)
}

// Delete removes every header with the given name.
func (hs *headers) Delete(name string) {
	hs.RemoveHeader(name)
}

// DeleteFront removes only the first occurrence of name.
func (hs *headers) DeleteFront(name string) {
	hs.deleteAt(name, true)
}

// DeleteBack removes only the last occurrence of name.
func (hs *headers) DeleteBack(name string) {
	hs.deleteAt(name, false)
}

func (hs *headers) deleteAt(name string, front bool) {
	nameLower := HeaderToLower(name)
	idx := -1
	for i, h := range hs.headerOrder {
		if HeaderToLower(h.Name()) == nameLower {
			idx = i
			if front {
				break
			}
		}
	}
	if idx < 0 {
		return
	}
	hs.headerOrder = append(hs.headerOrder[:idx], hs.headerOrder[idx+1:]...)
	hs.rebuildFastPath()
}

// Drop is an alias for Delete, matching the vocabulary used by the
// base spec for bulk removal (e.g. stripping hop-by-hop headers).
func (hs *headers) Drop(name string) {
	hs.RemoveHeader(name)
}

// Fetch returns the first header with name, false if absent.
func (hs *headers) Fetch(name string) (Header, bool) {
	return hs.FetchFront(name)
}

// MustFetch panics if name is absent; reserved for call sites that
// already validated the header's presence (e.g. after Validate).
func (hs *headers) MustFetch(name string) Header {
	h, ok := hs.Fetch(name)
	if !ok {
		panic("sip: header not present: " + name)
	}
	return h
}

func (hs *headers) FetchFront(name string) (Header, bool) {
	h := hs.getHeader(HeaderToLower(name))
	if h == nil {
		return nil, false
	}
	return h, true
}

func (hs *headers) FetchBack(name string) (Header, bool) {
	nameLower := HeaderToLower(name)
	var found Header
	for _, h := range hs.headerOrder {
		if HeaderToLower(h.Name()) == nameLower {
			found = h
		}
	}
	if found == nil {
		return nil, false
	}
	return found, true
}

// Get returns the first header with name, or def if absent.
func (hs *headers) Get(name string, def Header) Header {
	if h, ok := hs.Fetch(name); ok {
		return h
	}
	return def
}

// Update replaces every header with name by applying fn to each.
func (hs *headers) Update(name string, fn func(Header) Header) {
	nameLower := HeaderToLower(name)
	for i, h := range hs.headerOrder {
		if HeaderToLower(h.Name()) == nameLower {
			hs.headerOrder[i] = fn(h)
		}
	}
	hs.rebuildFastPath()
}

func (hs *headers) UpdateFront(name string, fn func(Header) Header) {
	nameLower := HeaderToLower(name)
	for i, h := range hs.headerOrder {
		if HeaderToLower(h.Name()) == nameLower {
			hs.headerOrder[i] = fn(h)
			break
		}
	}
	hs.rebuildFastPath()
}

func (hs *headers) UpdateBack(name string, fn func(Header) Header) {
	nameLower := HeaderToLower(name)
	idx := -1
	for i, h := range hs.headerOrder {
		if HeaderToLower(h.Name()) == nameLower {
			idx = i
		}
	}
	if idx < 0 {
		return
	}
	hs.headerOrder[idx] = fn(hs.headerOrder[idx])
	hs.rebuildFastPath()
}

// PopFront removes and returns the first occurrence of name.
func (hs *headers) PopFront(name string) (Header, bool) {
	return hs.getAndUpdateAt(name, true, nil)
}

// PopBack removes and returns the last occurrence of name.
func (hs *headers) PopBack(name string) (Header, bool) {
	return hs.getAndUpdateAt(name, false, nil)
}

// GetAndUpdateFront atomically reads and replaces the first occurrence.
func (hs *headers) GetAndUpdateFront(name string, fn func(Header) Header) (Header, bool) {
	return hs.getAndUpdateAt(name, true, fn)
}

// GetAndUpdateBack atomically reads and replaces the last occurrence.
func (hs *headers) GetAndUpdateBack(name string, fn func(Header) Header) (Header, bool) {
	return hs.getAndUpdateAt(name, false, fn)
}

// getAndUpdateAt implements both the pop (fn == nil) and update
// (fn != nil) variants of the front/back get-and-mutate operations.
func (hs *headers) getAndUpdateAt(name string, front bool, fn func(Header) Header) (Header, bool) {
	nameLower := HeaderToLower(name)
	idx := -1
	for i, h := range hs.headerOrder {
		if HeaderToLower(h.Name()) == nameLower {
			idx = i
			if front {
				break
			}
		}
	}
	if idx < 0 {
		return nil, false
	}

	old := hs.headerOrder[idx]
	if fn == nil {
		hs.headerOrder = append(hs.headerOrder[:idx], hs.headerOrder[idx+1:]...)
	} else {
		hs.headerOrder[idx] = fn(old)
	}
	hs.rebuildFastPath()
	return old, true
}
