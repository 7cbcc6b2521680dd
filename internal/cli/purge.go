package cli

import (
	"bufio"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/runnerr0/margin/internal/storage"
)

type purgeJSON struct {
	Purged  bool   `json:"purged"`
	Message string `json:"message"`
}

// setDB allows tests to inject a database connection.
func (c *PurgeCommand) setDB(db *sql.DB) {
	c.db = db
}

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	return c.execute(os.Stdin)
}

func (c *PurgeCommand) execute(in io.Reader) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	// Confirmation prompt unless --force
	if !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete ALL margin data.")
		fmt.Println("  - All remembered searches")
		fmt.Println("  - All reading positions")
		fmt.Println("  - All reader preferences")
		fmt.Println()
		fmt.Println("This action cannot be undone.")
		fmt.Println()
		fmt.Print(`Type "PURGE" to confirm: `)

		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		input := strings.TrimSpace(scanner.Text())
		if input != "PURGE" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	// Open or use injected DB
	db := c.db
	if db == nil {
		rt, err := openRuntime(c.globals, true)
		if err != nil {
			return err
		}
		defer rt.close()
		db = rt.db
	}

	store, err := storage.NewSQLiteStore(db)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	if err := store.PurgeAll(c.globals.context()); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if c.globals.json() {
		return writeJSON(purgeJSON{Purged: true, Message: "all data deleted"})
	}

	fmt.Println("Purged all data. Margin is empty.")
	return nil
}
