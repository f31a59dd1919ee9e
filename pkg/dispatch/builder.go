package dispatch

// Builder groups record ids into bundles of at most size ids
type Builder struct {
	size    int
	current []int64
}

func NewBuilder(size int) *Builder {
	if size <= 0 {
		size = DEFAULT_BUNDLE_SIZE
	}
	return &Builder{size: size}
}

// Add appends id to the open bundle. The bundle is sealed and returned once it is full or when
// last is set. A sealed bundle is never touched again.
func (b *Builder) Add(id int64, last bool) ([]int64, bool) {
	if b.current == nil {
		b.current = make([]int64, 0, b.size)
	}
	b.current = append(b.current, id)
	if len(b.current) >= b.size || last {
		return b.seal(), true
	}
	return nil, false
}

// Flush seals the open bundle if it holds any id
func (b *Builder) Flush() ([]int64, bool) {
	if len(b.current) == 0 {
		return nil, false
	}
	return b.seal(), true
}

// Pending is the number of ids in the open bundle
func (b *Builder) Pending() int {
	return len(b.current)
}

func (b *Builder) seal() []int64 {
	bundle := b.current
	b.current = nil
	return bundle
}
