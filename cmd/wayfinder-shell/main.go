// Command wayfinder-shell is the interactive registry/audit admin shell:
// list capabilities, tail the audit log, and issue promote/retire/revoke
// against a live Capability Registry.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/noeticlabs/wayfinder/internal/audit"
	"github.com/noeticlabs/wayfinder/internal/capability"
)

const historyFile = ".wayfinder-shell-history"

func main() {
	cfg := capability.Config{
		MinShadowRuns:           10,
		SuccessThreshold:        0.8,
		MaxShadowRuns:           50,
		FailureThreshold:        0.3,
		CircuitBreakerThreshold: 3,
	}
	auditLog := audit.New(audit.NewMemoryBackend())
	reg := capability.NewRegistry(cfg, auditLog, nil)

	// Seed a couple of capabilities so a fresh shell has something to list;
	// a real deployment wires this registry to the live one instead.
	_ = reg.RegisterLeaf("move_to", "v1")
	_ = reg.RegisterOption("defend_base", "v1")

	shell := &shell{reg: reg, audit: auditLog, who: "operator"}
	shell.run()
}

type shell struct {
	reg   *capability.Registry
	audit *audit.Log
	who   string
}

func (s *shell) run() {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println("wayfinder-shell: type 'help' for commands, 'exit' to quit")
	for {
		input, err := line.Prompt("wayfinder> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			return
		}
		if err != nil {
			log.Printf("[SHELL] prompt error: %v", err)
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if !s.dispatch(input) {
			return
		}
	}
}

func (s *shell) dispatch(input string) bool {
	fields := strings.Fields(input)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "exit", "quit":
		return false
	case "help":
		s.help()
	case "list":
		s.list()
	case "audit":
		s.tailAudit()
	case "promote":
		s.transition(args, s.reg.Promote, "promote")
	case "retire":
		s.transition(args, s.reg.Retire, "retire")
	case "revoke":
		s.transition(args, s.reg.Revoke, "revoke")
	default:
		fmt.Printf("unknown command %q; type 'help'\n", cmd)
	}
	return true
}

func (s *shell) help() {
	fmt.Println(`commands:
  list                         list every registered capability
  audit                        print the audit log
  promote <name> <version>     promote a shadow capability to live
  retire <name> <version>      retire a shadow or live capability
  revoke <name> <version>      revoke a capability entirely
  exit                         quit the shell`)
}

func (s *shell) list() {
	caps := s.reg.List()
	if len(caps) == 0 {
		fmt.Println("(no capabilities registered)")
		return
	}
	for _, c := range caps {
		fmt.Printf("%-24s %-8s track=%-8s status=%-10s shadow_runs=%d success_rate=%.2f\n",
			c.Name, c.Version, c.Track, c.Status, c.Shadow.TotalRuns, c.Shadow.SuccessRate())
	}
}

func (s *shell) tailAudit() {
	entries, err := s.audit.GetAuditLog()
	if err != nil {
		fmt.Printf("audit read error: %v\n", err)
		return
	}
	if len(entries) == 0 {
		fmt.Println("(audit log empty)")
		return
	}
	for _, e := range entries {
		fmt.Printf("%s %-10s %-24s who=%s %s\n", e.Timestamp.Format("2006-01-02T15:04:05"), e.Op, e.ID, e.Who, e.Detail)
	}
}

func (s *shell) transition(args []string, fn func(name, version, who string) error, verb string) {
	if len(args) != 2 {
		fmt.Printf("usage: %s <name> <version>\n", verb)
		return
	}
	if err := fn(args[0], args[1], s.who); err != nil {
		fmt.Printf("%s failed: %v\n", verb, err)
		return
	}
	fmt.Printf("%s %s@%s: ok\n", verb, args[0], args[1])
}
