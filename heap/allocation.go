package heap

// Allocation is a run of contiguous blocks detached from a Region's free list. The zero value
// is not a valid allocation.
type Allocation struct {
	region *Region
	serial uint32
	first  int32
	blocks int
	size   int
}

// IsZero returns true if this is the zero Allocation
func (a Allocation) IsZero() bool {
	return a.region == nil
}

// Address is the address of the first block in the run
func (a Allocation) Address() Address {
	if a.region == nil {
		return 0
	}
	return a.region.addressOf(a.first)
}

// End is the address one past the last block in the run
func (a Allocation) End() Address {
	return a.Address() + Address(a.blocks*BlockSize)
}

// Blocks is the number of blocks charged for this allocation
func (a Allocation) Blocks() int {
	return a.blocks
}

// Size is the number of bytes that were requested
func (a Allocation) Size() int {
	return a.size
}

// Bytes returns the region memory backing this allocation. The slice covers every charged
// block, so it is always at least Size() bytes long.
func (a Allocation) Bytes() []byte {
	if a.region == nil {
		return nil
	}
	start := int(a.first) * BlockSize
	return a.region.data[start : start+a.blocks*BlockSize : start+a.blocks*BlockSize]
}

// RegionName is the name of the region this allocation came from
func (a Allocation) RegionName() string {
	if a.region == nil {
		return ""
	}
	return a.region.name
}
