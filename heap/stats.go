package heap

import (
	"fmt"

	"github.com/f4os/kcore/memutils"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// AddStatistics sums this region's block usage into stats
func (r *Region) AddStatistics(stats *memutils.Statistics) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stats.BlockCount += len(r.slots)
	stats.FreeBlockCount += r.freeCount
	stats.BlockBytes += len(r.slots) * BlockSize
	stats.AllocationCount += r.allocationCount
	stats.AllocationBytes += (len(r.slots) - r.freeCount) * BlockSize
}

// AddDetailedStatistics sums this region's block usage and fragmentation into stats. Allocation
// sizes are the charged sizes, in bytes.
func (r *Region) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stats.BlockCount += len(r.slots)
	stats.FreeBlockCount += r.freeCount
	stats.BlockBytes += len(r.slots) * BlockSize

	r.visitRuns(func(free bool, first, blocks int) {
		if free {
			stats.AddFreeRun(blocks)
		} else {
			stats.AddAllocation(blocks * BlockSize)
		}
	})
}

// visitRuns walks the slots in address order, reporting each maximal free run and each
// allocation. Must be called with the mutex held.
func (r *Region) visitRuns(visit func(free bool, first, blocks int)) {
	index := 0
	for index < len(r.slots) {
		current := r.slots[index]
		end := index + 1
		for end < len(r.slots) && r.slots[end].state == current.state &&
			(current.state == slotFree || r.slots[end].serial == current.serial) {
			end++
		}

		visit(current.state == slotFree, index, end-index)
		index = end
	}
}

// BlockJsonData populates a json object with information about this region
func (r *Region) BlockJsonData(json jwriter.ObjectState) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	r.AddDetailedStatistics(&stats)

	json.Name("Name").String(r.name)
	json.Name("Base").String(fmt.Sprintf("0x%08x", uint32(r.base)))
	json.Name("End").String(fmt.Sprintf("0x%08x", uint32(r.end)))
	json.Name("TotalBlocks").Int(stats.BlockCount)
	json.Name("FreeBlocks").Int(stats.FreeBlockCount)
	json.Name("Allocations").Int(stats.AllocationCount)
	json.Name("FreeRuns").Int(stats.FreeRunCount)
	if stats.FreeRunCount > 0 {
		json.Name("LargestFreeRun").Int(stats.FreeRunMax)
	}
}

// PrintDetailedMap writes every allocation and free run of the region, in address order
func (r *Region) PrintDetailedMap(json jwriter.ObjectState) {
	r.BlockJsonData(json)

	arrayState := json.Name("Runs").Array()
	defer arrayState.End()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.visitRuns(func(free bool, first, blocks int) {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Address").String(fmt.Sprintf("0x%08x", uint32(r.addressOf(int32(first)))))
		obj.Name("Blocks").Int(blocks)
		if free {
			obj.Name("Type").String("Free")
		} else {
			obj.Name("Type").String("Allocation")
		}
	})
}
