package cli

import (
	"context"
	"fmt"
	"strings"
)

func (c *Cli) runDiagnose(ctx context.Context) error {
	c.io.Println("=== Sync Diagnostics ===")
	c.io.Println()

	userID, clientID, err := c.identity(ctx)
	if err != nil {
		return err
	}

	report, err := c.diagService.Diagnose(ctx, userID, clientID)
	if err != nil {
		return fmt.Errorf("diagnostics failed: %w", err)
	}

	c.io.Printf("User:               %s\n", report.UserID)
	c.io.Printf("Client:             %s\n", report.ClientID)
	c.io.Printf("Local max sequence: %d\n", report.LocalMaxSequence)
	c.io.Printf("Cloud max sequence: %d\n", report.CloudMaxSequence)
	c.io.Printf("Gap:                %d\n", report.Gap)
	c.io.Printf("Unsynced:           %d operation(s)\n", report.UnsyncedCount)
	c.io.Printf("Retry queue:        %d operation(s)\n", report.RetryQueueCount)
	c.io.Printf("Dead letter queue:  %d operation(s)\n", report.DeadLetterCount)

	if len(report.SequenceCollisions) > 0 {
		c.io.Println()
		c.io.Printf("⚠️  Sequence collisions: %d\n", len(report.SequenceCollisions))
		for _, collision := range report.SequenceCollisions {
			c.io.Printf("  client %s, sequence %d: %s\n", collision.ClientID, collision.Sequence, strings.Join(collision.OperationIDs, ", "))
		}
	}

	c.io.Println()
	c.io.Printf("Recommendation: %s\n", report.Recommendation)

	return nil
}

func (c *Cli) runRepair(ctx context.Context) error {
	c.io.Println("=== Sync Repair ===")
	c.io.Println()
	c.io.Println("Renumbering sequence collisions...")

	_, clientID, err := c.identity(ctx)
	if err != nil {
		return err
	}

	result, err := c.diagService.RepairSequenceCollisions(ctx, clientID)
	if err != nil {
		return fmt.Errorf("repair failed: %w", err)
	}

	c.io.Println()
	if result.Reassigned == 0 {
		c.io.Println("✓ No collisions found, nothing to repair.")
	} else {
		c.io.Printf("✓ Reassigned %d operation(s) to fresh sequence numbers.\n", result.Reassigned)
	}
	for _, msg := range result.Errors {
		c.io.Printf("⚠️  %s\n", msg)
	}

	return nil
}

func (c *Cli) runClearFailed(ctx context.Context) error {
	c.io.Println("=== Clear Failed Operations ===")
	c.io.Println()
	c.io.Println("This permanently drops operations from the dead letter queue.")
	c.io.Println("They will NEVER reach the server.")
	c.io.Println()

	answer, err := c.io.ReadInput("Type 'yes' to confirm: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if answer != "yes" {
		c.io.Println("Aborted.")
		return nil
	}

	dropped, err := c.diagService.ClearFailed(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear dead letter queue: %w", err)
	}

	c.io.Printf("✓ Dropped %d operation(s).\n", dropped)

	return nil
}

// identity возвращает пользователя и устройство текущей сессии
func (c *Cli) identity(ctx context.Context) (userID, clientID string, err error) {
	session, err := c.authService.Session(ctx)
	if err != nil {
		return "", "", fmt.Errorf("not logged in: %w", err)
	}

	clientID, err = c.authService.ClientID(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve client id: %w", err)
	}

	return session.UserID, clientID, nil
}
