package main

import (
	"fmt"
	"strings"

	"github.com/datallboy/gopatch/internal/events"
)

// attachCLIProgress renders a live progress line from bus events.
func attachCLIProgress(bus *events.Bus) {
	bus.Subscribe(events.ValidateUpdate, func(payload any) {
		p, ok := payload.(events.Progress)
		if !ok {
			return
		}
		fmt.Printf("\rValidating %s: %d/%d files      ", p.Unit, p.Done, p.Total)
	})

	bus.Subscribe(events.DownloadUpdate, func(payload any) {
		p, ok := payload.(events.Progress)
		if !ok {
			return
		}
		renderDownload(p)
	})

	bus.Subscribe(events.DownloadSucceeded, func(payload any) {
		fmt.Println()
	})
}

func renderDownload(p events.Progress) {
	percent := p.Fraction * 100

	// Progress Bar go brrr [====>   ]
	const barWidth = 20
	completedWidth := int(p.Fraction * barWidth)
	if completedWidth > barWidth {
		completedWidth = barWidth
	}
	bar := strings.Repeat("=", completedWidth)
	if completedWidth < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-completedWidth-1)
	}

	speedMbps := p.Speed * 8 / (1024 * 1024)

	fmt.Printf("\r%s [%s] %5.1f%% | Speed: %6.2f Mbps | %d/%d MB      ",
		p.Unit, bar, percent, speedMbps, p.Done/1024/1024, p.Total/1024/1024)
}
