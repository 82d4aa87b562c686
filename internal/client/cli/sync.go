package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runSync(ctx context.Context) error {
	c.io.Println("=== Synchronization ===")

	accessToken, err := c.authService.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("not authenticated: %w", err)
	}

	c.io.Println()
	c.io.Println("Starting synchronization with server...")

	result, err := c.syncService.Sync(ctx, accessToken)
	if err != nil {
		return fmt.Errorf("synchronization failed: %w", err)
	}

	c.io.Println()
	c.io.Println("✓ Synchronization completed!")
	c.io.Println()
	c.io.Printf("Pushed to server:   %d operation(s)\n", result.Pushed)
	c.io.Printf("Pulled from server: %d operation(s)\n", result.Pulled)
	c.io.Printf("Merged locally:     %d operation(s)\n", result.Merged)
	if result.Skipped > 0 {
		c.io.Printf("Skipped (errors):   %d\n", result.Skipped)
	}
	if result.Conflicts > 0 {
		c.io.Printf("⚠️  Conflicts escalated for manual review: %d (see logs)\n", result.Conflicts)
	}
	if result.Deferred {
		c.io.Println()
		c.io.Println("⚠️  Merge was deferred: a local operation is still in progress.")
		c.io.Println("Run 'routesync sync' again in a few seconds.")
	}

	return nil
}
