package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/routesync/internal/models"
)

// statusFlags - порядок вывода защитных флагов в команде status
var statusFlags = []models.FlagName{
	models.FlagImportInProgress,
	models.FlagRestoreInProgress,
	models.FlagCompletionInProgress,
	models.FlagMergeInProgress,
	models.FlagActiveDaySession,
}

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Status ===")
	c.io.Println()

	isAuth, err := c.authService.IsAuthenticated(ctx)
	if err != nil {
		return fmt.Errorf("failed to check authentication: %w", err)
	}

	if !isAuth {
		c.io.Println("Status: Not authenticated")
		c.io.Println()
		c.io.Println("Run 'routesync login' to authenticate.")
		return nil
	}

	session, err := c.authService.Session(ctx)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	expiresAt := time.Unix(session.ExpiresAt, 0)
	remaining := time.Until(expiresAt)

	c.io.Println("Status: Authenticated")
	c.io.Printf("Username: %s\n", session.Username)
	c.io.Printf("Token expires: %s\n", expiresAt.Format(time.RFC3339))

	if remaining > 0 {
		c.io.Printf("Time remaining: %s\n", remaining.Round(time.Second))
	} else {
		c.io.Println("⚠️  Token has expired. It will be refreshed on the next sync.")
	}

	pendingCount, err := c.syncService.GetPendingSyncCount(ctx)
	if err != nil {
		// status остается полезным и без счетчика
		c.io.Printf("\nWarning: Failed to get pending sync count: %v\n", err)
	} else {
		c.io.Println()
		if pendingCount > 0 {
			c.io.Printf("⚠️  Pending sync: %d operation(s) waiting to be pushed\n", pendingCount)
			c.io.Println("Run 'routesync sync' to synchronize with server.")
		} else {
			c.io.Println("✓ All operations synchronized with server")
		}
	}

	c.printFlags(ctx)

	return nil
}

func (c *Cli) printFlags(ctx context.Context) {
	active := 0
	for _, flag := range statusFlags {
		remaining, err := c.protection.TimeRemaining(ctx, flag)
		if err != nil {
			c.io.Printf("\nWarning: Failed to check flag %s: %v\n", flag, err)
			continue
		}
		if remaining == 0 {
			continue
		}
		if active == 0 {
			c.io.Println()
			c.io.Println("Active protection flags:")
		}
		active++
		if remaining < 0 {
			c.io.Printf("  %s (until cleared)\n", flag)
		} else {
			c.io.Printf("  %s (%s remaining)\n", flag, remaining.Round(time.Second))
		}
	}
}
