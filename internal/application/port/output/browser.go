package output

import (
	"context"

	"portal-session/internal/domain/entity"
)

// BrowserPort is one live browser page. It is owned by exactly one session.
type BrowserPort interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) (*entity.Screenshot, error)

	// Raw input, used for remote control by the user.
	ClickAt(ctx context.Context, x, y int) error
	Press(ctx context.Context, key string) error
	InsertChar(ctx context.Context, ch rune) error

	// Selector-level actions, used by the automation agent.
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, text string) error
	Scroll(ctx context.Context, direction string) error
	GetPageText(ctx context.Context) (string, error)
	GetPageHTML(ctx context.Context) (string, error)

	Close()
}

// BrowserLauncher acquires a fresh browser. Implementations must release
// anything partially acquired when they return an error.
type BrowserLauncher interface {
	Launch(ctx context.Context, viewport entity.Viewport) (BrowserPort, error)
}
