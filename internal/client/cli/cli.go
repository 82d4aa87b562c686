package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/routesync/internal/client/auth"
	"github.com/iudanet/routesync/internal/client/diag"
	"github.com/iudanet/routesync/internal/client/iocli"
	"github.com/iudanet/routesync/internal/client/protection"
	"github.com/iudanet/routesync/internal/client/record"
	"github.com/iudanet/routesync/internal/client/sync"
)

// Cli связывает консольные команды с клиентскими сервисами
type Cli struct {
	io            iocli.IO
	authService   *auth.Service
	syncService   sync.Service
	diagService   *diag.Service
	recordService *record.Service
	protection    *protection.Coordinator
}

func New(
	io iocli.IO,
	authService *auth.Service,
	syncService sync.Service,
	diagService *diag.Service,
	recordService *record.Service,
	coordinator *protection.Coordinator,
) *Cli {
	return &Cli{
		io:            io,
		authService:   authService,
		syncService:   syncService,
		diagService:   diagService,
		recordService: recordService,
		protection:    coordinator,
	}
}

// Run выполняет одну команду. Ошибку печатает вызывающий.
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return c.runRegister(ctx)
	case "login":
		return c.runLogin(ctx)
	case "logout":
		return c.runLogout(ctx)
	case "status":
		return c.runStatus(ctx)
	case "sync":
		return c.runSync(ctx)
	case "start-day":
		return c.runStartDay(ctx)
	case "end-day":
		return c.runEndDay(ctx)
	case "complete":
		return c.runComplete(ctx, args)
	case "add-address":
		return c.runAddAddress(ctx, args)
	case "import":
		return c.runImport(ctx, args)
	case "diagnose":
		return c.runDiagnose(ctx)
	case "repair":
		return c.runRepair(ctx)
	case "clear-failed":
		return c.runClearFailed(ctx)
	default:
		c.PrintUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (c *Cli) PrintUsage() {
	c.io.Println("RouteSync Client")
	c.io.Println()
	c.io.Println("Usage:")
	c.io.Println("  routesync [OPTIONS] COMMAND")
	c.io.Println()
	c.io.Println("Options:")
	c.io.Println("  --version      Show version information")
	c.io.Println("  --server URL   Server URL (default: http://localhost:8080)")
	c.io.Println("  --db PATH      Path to local database (default: routesync-client.db)")
	c.io.Println()
	c.io.Println("Commands:")
	c.io.Println("  register       Register new user")
	c.io.Println("  login          Login to server")
	c.io.Println("  logout         Logout from server")
	c.io.Println("  status         Show auth status, pending operations and protection flags")
	c.io.Println("  sync           Synchronize local operations with server")
	c.io.Println("  start-day      Open today's work session")
	c.io.Println("  end-day        Close the open work session")
	c.io.Println("  complete INDEX OUTCOME [AMOUNT]")
	c.io.Println("                 Record a completion for an address")
	c.io.Println("  add-address ADDRESS")
	c.io.Println("                 Add a single address to the route list")
	c.io.Println("  import FILE    Replace the route list from a file (one address per line)")
	c.io.Println("  diagnose       Inspect the local operation log for sync problems")
	c.io.Println("  repair         Renumber sequence collisions and resubmit affected operations")
	c.io.Println("  clear-failed   Drop permanently failed operations (asks for confirmation)")
	c.io.Println()
	c.io.Println("Examples:")
	c.io.Println("  routesync register")
	c.io.Println("  routesync login")
	c.io.Println("  routesync start-day")
	c.io.Println("  routesync complete 3 PIF 25.50")
	c.io.Println("  routesync sync")
	c.io.Println("  routesync --server https://example.com status")
}
