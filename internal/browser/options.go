// Package browser drives the rendering environment with chromedp: one Chrome
// per lane, each with a single tab showing the runner page.
package browser

import (
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultStartTimeout bounds how long a lane may take to launch Chrome and
// load the runner page.
const DefaultStartTimeout = 30 * time.Second

// Options configures how lanes are launched.
type Options struct {
	// ExecPath is the Chrome binary. Empty means chromedp's lookup.
	ExecPath string
	// Flags are extra command-line switches, space separated.
	Flags        string
	Headless     bool
	NoAnimations bool
	StartTimeout time.Duration
}

func (o Options) startTimeout() time.Duration {
	if o.StartTimeout > 0 {
		return o.StartTimeout
	}
	return DefaultStartTimeout
}

// AllocatorOptions builds the exec allocator options for one lane. Flags that
// affect rasterisation are pinned so captures are reproducible across hosts.
func AllocatorOptions(o Options) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,

		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("mute-audio", true),

		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("force-device-scale-factor", "1"),
		chromedp.Flag("force-color-profile", "srgb"),
		chromedp.Flag("font-render-hinting", "none"),
	}

	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	for _, f := range ParseFlags(o.Flags) {
		opts = append(opts, chromedp.Flag(f.Name, f.Value))
	}

	if o.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return opts
}

// Switch is one parsed command-line flag.
type Switch struct {
	Name  string
	Value any
}

// ParseFlags splits "--a --b=c" into switches. A bare flag is true.
func ParseFlags(s string) []Switch {
	var out []Switch
	for _, f := range strings.Fields(s) {
		if k, v, ok := strings.Cut(f, "="); ok {
			out = append(out, Switch{Name: strings.TrimLeft(k, "-"), Value: v})
		} else {
			out = append(out, Switch{Name: strings.TrimLeft(f, "-"), Value: true})
		}
	}
	return out
}
