package balancer

import (
	"io"
	"os/exec"
	"sync"

	"github.com/bifshteksex/roombot/internal/controlwire"
)

// WorkerEntry is the Balancer's in-memory record of one Worker OS
// process: its control connection, its extractor address, and its
// current bot count (spec §3 "Worker entry"). heapIndex is maintained by
// container/heap and must not be touched outside workerheap.go.
type WorkerEntry struct {
	Conn             io.ReadWriteCloser
	Process          *exec.Cmd
	ExtractorAddr    string
	RunningInstances int

	writeMu   sync.Mutex
	heapIndex int
}

// SendCommand serializes writes to the control connection: multiple
// goroutines may want to command the same worker (e.g. Shutdown's stop
// and a delete racing), and the connection itself is not safe for concurrent
// writers.
func (w *WorkerEntry) SendCommand(cmd controlwire.Command) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return controlwire.WriteCommand(w.Conn, cmd)
}
