package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/routesync/internal/client/record"
)

func (c *Cli) runStartDay(ctx context.Context) error {
	session, err := c.recordService.StartDay(ctx)
	if err != nil {
		if errors.Is(err, record.ErrSessionActive) {
			c.io.Println("A work session for today already exists.")
			return nil
		}
		return fmt.Errorf("failed to start day: %w", err)
	}

	c.io.Printf("✓ Work session started: %s at %s\n", session.Date, session.Start.Format("15:04:05"))
	return nil
}

func (c *Cli) runEndDay(ctx context.Context) error {
	session, err := c.recordService.EndDay(ctx)
	if err != nil {
		if errors.Is(err, record.ErrNoOpenSession) {
			c.io.Println("No open work session. Run 'routesync start-day' first.")
			return nil
		}
		return fmt.Errorf("failed to end day: %w", err)
	}

	duration := time.Duration(session.DurationSeconds) * time.Second
	c.io.Printf("✓ Work session closed: %s (worked %s)\n", session.Date, duration)
	return nil
}

func (c *Cli) runComplete(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: complete INDEX OUTCOME [AMOUNT]")
	}

	index, err := strconv.Atoi(args[0])
	if err != nil || index < 0 {
		return fmt.Errorf("invalid address index: %q", args[0])
	}

	outcome := args[1]

	var amount *float64
	if len(args) > 2 {
		value, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid amount: %q", args[2])
		}
		amount = &value
	}

	completion, err := c.recordService.RecordCompletion(ctx, index, outcome, amount)
	if err != nil {
		if errors.Is(err, record.ErrGuardBusy) {
			c.io.Println("Another completion is being recorded. Try again in a few seconds.")
			return nil
		}
		return fmt.Errorf("failed to record completion: %w", err)
	}

	c.io.Printf("✓ Completion recorded: address %d, outcome %s\n", completion.Index, completion.Outcome)
	if completion.Amount != nil {
		c.io.Printf("  Amount: %.2f\n", *completion.Amount)
	}
	return nil
}

func (c *Cli) runAddAddress(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: add-address ADDRESS")
	}

	address := strings.Join(args, " ")
	addr, err := c.recordService.AddAddress(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to add address: %w", err)
	}

	c.io.Printf("✓ Address added: %s\n", addr.Address)
	return nil
}

func (c *Cli) runImport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: import FILE")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	count, err := c.recordService.ImportAddresses(ctx, strings.Split(string(data), "\n"))
	if err != nil {
		if errors.Is(err, record.ErrGuardBusy) {
			c.io.Println("Another import is in progress. Try again in a few seconds.")
			return nil
		}
		if errors.Is(err, record.ErrNothingToImport) {
			return fmt.Errorf("%s contains no addresses", args[0])
		}
		return fmt.Errorf("import failed: %w", err)
	}

	c.io.Printf("✓ Imported %d address(es). Route list version advanced.\n", count)
	return nil
}
