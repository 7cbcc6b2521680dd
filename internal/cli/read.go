package cli

import (
	"fmt"
	"strconv"

	"github.com/runnerr0/margin/internal/reader/session"
	"github.com/runnerr0/margin/internal/render"
	"github.com/runnerr0/margin/internal/render/textbook"
	"github.com/runnerr0/margin/internal/storage"
)

// Execute implements the go-flags Commander interface for ReadCommand.
func (c *ReadCommand) Execute(args []string) error {
	rt, err := openRuntime(c.globals, true)
	if err != nil {
		return err
	}
	defer rt.close()

	return c.executeWith(rt)
}

// executeWith reads the book using a provided runtime (for testing).
func (c *ReadCommand) executeWith(rt *runtime) error {
	ctx := c.globals.context()

	if err := c.savePreferences(rt); err != nil {
		return err
	}

	return rt.withSession(ctx, c.Args.Book, true, func(book *textbook.Book, sess *session.Session) error {
		snap := sess.Snapshot()

		if c.Restart {
			first := render.Token(book.Spine()[0].Href())
			var err error
			if snap, err = sess.Goto(ctx, first); err != nil {
				return fmt.Errorf("restart: %w", err)
			}
		}

		if c.Pages != 0 {
			var err error
			if snap, err = sess.Turn(ctx, c.Pages); err != nil {
				return fmt.Errorf("turn %d pages: %w", c.Pages, err)
			}
		}

		return printPage(ctx, c.globals, book, snap, "")
	})
}

// savePreferences remembers the reader theme and font size given on the
// command line. They apply to this and every later session.
func (c *ReadCommand) savePreferences(rt *runtime) error {
	ctx := c.globals.context()

	if c.Theme != "" {
		theme, ok := render.ParseTheme(c.Theme)
		if !ok {
			return fmt.Errorf("unknown theme %q (use light, dark or sepia)", c.Theme)
		}
		if err := rt.store.SetSetting(ctx, storage.SettingTheme, string(theme)); err != nil {
			return err
		}
	}

	if c.FontSize != 0 {
		if c.FontSize < render.MinFontSize || c.FontSize > render.MaxFontSize {
			return fmt.Errorf("--font-size must be between %d and %d", render.MinFontSize, render.MaxFontSize)
		}
		if err := rt.store.SetSetting(ctx, storage.SettingFontSize, strconv.Itoa(c.FontSize)); err != nil {
			return err
		}
	}

	return nil
}
