// cmd/logctl is the CLI client for the replicated log, built with Cobra.
//
// Usage:
//
//	logctl append "hello world" --w 2   --server http://localhost:8080
//	logctl messages                     --server http://localhost:8080
//	logctl health                       --server http://localhost:8080
//	logctl wait-quorum                  --server http://localhost:8080
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"

	"replicated-log/internal/client"
)

var (
	serverAddr string
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "logctl",
		Short: "CLI client for the replicated log",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"http://localhost:8080", "Node address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"HTTP request timeout")

	root.AddCommand(appendCmd(), messagesCmd(), healthCmd(), waitQuorumCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func appendCmd() *cobra.Command {
	var w int
	cmd := &cobra.Command{
		Use:   "append <message>",
		Short: "Append a message to the log via the primary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Append(context.Background(), args[0], w)
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
	cmd.Flags().IntVar(&w, "w", 0, "Write concern (default: server's N+1)")
	return cmd
}

func messagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "messages",
		Short: "List the node's visible messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			msgs, err := c.Messages(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(msgs)
			return nil
		},
	}
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the node's health view",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			h, err := c.Health(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(h)
			return nil
		},
	}
}

func waitQuorumCmd() *cobra.Command {
	var pollInterval time.Duration
	var maxWait time.Duration
	cmd := &cobra.Command{
		Use:   "wait-quorum",
		Short: "Poll the primary's health until the quorum predicate holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)

			deadline := time.Now().Add(maxWait)
			for {
				h, err := c.Health(context.Background())
				if err == nil && quorumFromHealth(h) {
					fmt.Println("quorum reached")
					return nil
				}
				if time.Now().After(deadline) {
					return fmt.Errorf("quorum not reached within %s", maxWait)
				}
				time.Sleep(pollInterval)
			}
		},
	}
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 500*time.Millisecond, "Interval between health polls")
	cmd.Flags().DurationVar(&maxWait, "max-wait", 30*time.Second, "Maximum time to wait for quorum")
	return cmd
}

// quorumFromHealth re-derives the (healthy+1) >= ceil((N+1)/2) predicate
// client-side from a primary's /health response, mirroring
// internal/health.Prober.QuorumOK.
func quorumFromHealth(h *client.HealthResponse) bool {
	n := len(h.SecondaryStatuses)
	healthy := 0
	for _, s := range h.SecondaryStatuses {
		if s.Healthy {
			healthy++
		}
	}
	required := int(math.Ceil(float64(n+1) / 2))
	return healthy+1 >= required
}

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
