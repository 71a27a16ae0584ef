package balancer

// workerHeap orders *WorkerEntry by RunningInstances so the Balancer can
// always assign a new session to the least-loaded Worker (spec §3
// "ordered by running_instances via a min-heap reformed before each
// assignment"). No example in the pack implements a priority queue; this
// is plain container/heap, justified in DESIGN.md as the one place
// stdlib is the right tool (no ecosystem library in the pack adds
// anything over container/heap for a fixed, small worker set).
type workerHeap []*WorkerEntry

func (h workerHeap) Len() int { return len(h) }

func (h workerHeap) Less(i, j int) bool {
	return h[i].RunningInstances < h[j].RunningInstances
}

func (h workerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *workerHeap) Push(x any) {
	entry := x.(*WorkerEntry)
	entry.heapIndex = len(*h)
	*h = append(*h, entry)
}

func (h *workerHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.heapIndex = -1
	*h = old[:n-1]
	return entry
}
