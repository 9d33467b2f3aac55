package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stacklok/joingroup/internal/httpclient"
	"github.com/stacklok/joingroup/internal/join"
	"github.com/stacklok/joingroup/internal/telemetry"
	"github.com/stacklok/joingroup/internal/transfer"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send money once the duplicate payment check has finished",
	Long: `Ask the backend whether the payment was already sent and send it if not. The
check runs in the background and the answer is handled on the main queue. When the
check takes longer than --timeout the payment is not sent.`,
	RunE: runSend,
}

// defaultCheckDelay is how long the backend is asked to take over the duplicate check
const defaultCheckDelay = 3 * time.Second

var errNotSent = errors.New("payment not sent")

var (
	sentStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	notSentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
)

func init() {
	sendCmd.Flags().Duration("delay", defaultCheckDelay, "How long the backend takes to check for duplicates")
	sendCmd.Flags().Duration("timeout", transfer.DefaultTimeout, "How long to wait for the duplicate check")
}

func runSend(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	delay, _ := cmd.Flags().GetDuration("delay")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if err := requirePositive("--timeout", timeout); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tel, shutdownTelemetry, err := newTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	joinMetrics, err := telemetry.NewJoinMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create join metrics: %w", err)
	}

	// The check is slow on purpose; only the sender's timeout should cut it short
	client := httpclient.NewDefaultClient(delay+cfg.GetClientTimeout(),
		httpclient.WithMaxRetries(cfg.GetMaxRetries()))
	sender := transfer.NewSender(transfer.NewHTTPChecker(client, cfg.GetBaseURL(), delay),
		transfer.WithTimeout(timeout),
		transfer.WithMetrics(joinMetrics),
	)

	return sendOnMainQueue(ctx, sender, cmd.OutOrStdout(), isTerminal(cmd.OutOrStdout()))
}

// sendOnMainQueue runs the transfer and prints its outcome from the main queue
func sendOnMainQueue(ctx context.Context, sender *transfer.Sender, out io.Writer, styled bool) error {
	queueCtx, stopQueue := context.WithCancel(ctx)
	defer stopQueue()

	mainQueue := join.NewSerialQueue("main")

	var result error
	sender.Send(ctx, mainQueue, func(outcome transfer.Outcome) {
		defer stopQueue()
		fmt.Fprintln(out, styleOutcome(outcome, styled))
		if !outcome.Sent() {
			result = fmt.Errorf("%w: %s", errNotSent, outcome.Message())
		}
	})

	if err := mainQueue.Run(queueCtx); err != nil {
		return err
	}
	if result == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return result
}

func styleOutcome(outcome transfer.Outcome, styled bool) string {
	msg := outcome.Message()
	if !styled {
		return msg
	}
	if outcome.Sent() {
		return sentStyle.Render(msg)
	}
	return notSentStyle.Render(msg)
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
