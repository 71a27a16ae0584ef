package balancer

import (
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"time"

	"github.com/bifshteksex/roombot/internal/config"
)

// Boot listens on cfg.ControlListenAddr, spawns its Worker fleet and
// waits for each to dial back on that address (spec §4.3 "Spawn
// workers ... each reporting an acceptance socket that the balancer
// accept()s before proceeding").
func (b *Balancer) Boot(cfg config.BalancerConfig) error {
	listener, err := net.Listen("tcp", cfg.ControlListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen for workers: %w", err)
	}
	defer listener.Close()

	for i := 0; i < cfg.WorkersCount; i++ {
		cmd := exec.Command(cfg.WorkerBinaryPath,
			"-balancer-addr", cfg.ControlListenAddr,
			"-instances", strconv.Itoa(cfg.InstancesPerWorker),
		)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start worker %d: %w", i, err)
		}

		if err := listener.(*net.TCPListener).SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
			return fmt.Errorf("failed to set accept deadline: %w", err)
		}
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("failed to accept worker %d: %w", i, err)
		}

		b.AddWorker(&WorkerEntry{Conn: conn, Process: cmd})
	}

	return nil
}
