package memutils

import "math"

// Statistics is a running total of block usage for one or more heap regions
type Statistics struct {
	BlockCount      int
	FreeBlockCount  int
	AllocationCount int
	BlockBytes      int
	AllocationBytes int
}

func (s *Statistics) Clear() {
	s.BlockCount = 0
	s.FreeBlockCount = 0
	s.AllocationCount = 0
	s.BlockBytes = 0
	s.AllocationBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.BlockCount += other.BlockCount
	s.FreeBlockCount += other.FreeBlockCount
	s.AllocationCount += other.AllocationCount
	s.BlockBytes += other.BlockBytes
	s.AllocationBytes += other.AllocationBytes
}

// DetailedStatistics extends Statistics with fragmentation data. A free run is a maximal
// sequence of address-adjacent free blocks; its size is measured in blocks.
type DetailedStatistics struct {
	Statistics
	FreeRunCount      int
	AllocationSizeMin int
	AllocationSizeMax int
	FreeRunMin        int
	FreeRunMax        int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.FreeRunCount = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.FreeRunMin = math.MaxInt
	s.FreeRunMax = 0
}

func (s *DetailedStatistics) AddFreeRun(blocks int) {
	s.FreeRunCount++

	if blocks < s.FreeRunMin {
		s.FreeRunMin = blocks
	}

	if blocks > s.FreeRunMax {
		s.FreeRunMax = blocks
	}
}

func (s *DetailedStatistics) AddAllocation(size int) {
	s.AllocationCount++
	s.AllocationBytes += size

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.FreeRunCount += other.FreeRunCount

	if other.FreeRunMin < s.FreeRunMin {
		s.FreeRunMin = other.FreeRunMin
	}

	if other.FreeRunMax > s.FreeRunMax {
		s.FreeRunMax = other.FreeRunMax
	}

	if other.AllocationSizeMin < s.AllocationSizeMin {
		s.AllocationSizeMin = other.AllocationSizeMin
	}

	if other.AllocationSizeMax > s.AllocationSizeMax {
		s.AllocationSizeMax = other.AllocationSizeMax
	}
}

// LargestAllocatableSize returns the largest request, in bytes, that could still be satisfied
// by an unaligned allocation, given blockSize bytes per block. Heap rounding always charges
// one block more than size/blockSize, so the result is one block short of the largest run.
func (s *DetailedStatistics) LargestAllocatableSize(blockSize int) int {
	if s.FreeRunMax == 0 {
		return -1
	}
	return s.FreeRunMax*blockSize - 1
}
