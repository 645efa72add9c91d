package kernel

import (
	"fmt"

	"github.com/f4os/kcore/memutils"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Stats summarizes both heaps and the task registry
type Stats struct {
	Kernel memutils.DetailedStatistics
	User   memutils.DetailedStatistics
	Total  memutils.DetailedStatistics

	Tasks         int
	OpenResources int
}

// CalculateStatistics gathers the current Stats
func (s *System) CalculateStatistics() Stats {
	var stats Stats
	stats.Kernel.Clear()
	stats.User.Clear()
	stats.Total.Clear()

	s.kernelHeap.Region().AddDetailedStatistics(&stats.Kernel)
	s.userHeap.Region().AddDetailedStatistics(&stats.User)
	stats.Total.AddDetailedStatistics(&stats.Kernel)
	stats.Total.AddDetailedStatistics(&stats.User)

	for _, task := range s.Tasks() {
		stats.Tasks++
		stats.OpenResources += task.resources.Len()
	}

	return stats
}

// PrintDetailedMap writes both heap maps and every task's open resources as a json object
func (s *System) PrintDetailedMap(writer *jwriter.Writer) {
	s.logger.Debug("System::PrintDetailedMap")

	json := writer.Object()
	defer json.End()

	kernelObj := json.Name("KernelHeap").Object()
	s.kernelHeap.Region().PrintDetailedMap(kernelObj)
	kernelObj.End()

	userObj := json.Name("UserHeap").Object()
	s.userHeap.Region().PrintDetailedMap(userObj)
	userObj.End()

	tasks := json.Name("Tasks").Array()
	defer tasks.End()

	for _, task := range s.Tasks() {
		taskObj := tasks.Object()
		taskObj.Name("ID").Int(int(task.id))
		taskObj.Name("Name").String(task.name)
		taskObj.Name("Address").String(fmt.Sprintf("0x%08x", uint32(task.Address())))

		resourcesObj := taskObj.Name("Resources").Object()
		task.resources.PrintResources(resourcesObj)
		resourcesObj.End()

		taskObj.End()
	}
}
