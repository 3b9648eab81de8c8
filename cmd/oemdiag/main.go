// Command oemdiag parses an OEM feed file and prints a summary of what the
// tracker would serve from it.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/star/isstracker/internal/derive"
	"github.com/star/isstracker/internal/ephem"
	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/units"
)

func main() {
	file := flag.String("file", "", "OEM text file (default: newest file in -cache-dir)")
	cacheDir := flag.String("cache-dir", "/tmp/isstracker/oem", "OEM disk cache directory")
	at := flag.String("at", "", "RFC3339 instant to look up (default: now)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := run(os.Stdout, *file, *cacheDir, *at, logger); err != nil {
		fmt.Fprintln(os.Stderr, "oemdiag:", err)
		os.Exit(1)
	}
}

func run(w io.Writer, file, cacheDir, at string, logger *slog.Logger) error {
	var text string
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		text = string(data)
	} else {
		cached, err := oem.NewCache(cacheDir, 0).LoadLatest()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Cache file written: %s\n", cached.WrittenAt.Format(time.RFC3339))
		if cached.Skipped > 0 {
			fmt.Fprintf(w, "Skipped %d newer unparseable cache files\n", cached.Skipped)
		}
		text = cached.Text
	}

	target := time.Now().UTC()
	if at != "" {
		var err error
		target, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("parsing -at: %w", err)
		}
	}

	feed, err := oem.ParseText(text, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Header entries:   %d\n", len(feed.Header))
	fmt.Fprintf(w, "Metadata entries: %d\n", len(feed.Metadata))
	fmt.Fprintf(w, "Comment lines:    %d\n", len(feed.Comments))
	fmt.Fprintf(w, "State vectors:    %d\n", len(feed.Vectors))
	if name, ok := feed.Metadata["OBJECT_NAME"]; ok {
		fmt.Fprintf(w, "Object:           %s\n", name)
	}
	if len(feed.Vectors) == 0 {
		return nil
	}
	fmt.Fprintf(w, "First epoch:      %s\n", feed.Vectors[0].Epoch)
	fmt.Fprintf(w, "Last epoch:       %s\n", feed.Vectors[len(feed.Vectors)-1].Epoch)

	m, ok := ephem.Nearest(feed.Vectors, target)
	if !ok {
		return nil
	}
	fmt.Fprintf(w, "\nClosest to %s: %s (gap %.1fs)\n", target.Format(time.RFC3339), m.Vector.Epoch, m.Gap)

	speed, err := derive.Speed(m.Vector, units.SI)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  speed:     %.3f %s\n", speed.Value, speed.Units)

	lat, lon, alt, err := derive.Coordinates(m.Vector, units.SI)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  latitude:  %.4f\n", lat)
	fmt.Fprintf(w, "  longitude: %.4f\n", lon)
	fmt.Fprintf(w, "  altitude:  %.3f %s\n", alt.Value, alt.Units)

	if gp, ok := derive.GroundPoint(m.Vector, units.SI); ok {
		fmt.Fprintf(w, "  ground point (WGS84): lat %.4f lon %.4f alt %.3f km\n", gp.LatDeg, gp.LonDeg, gp.AltKm)
	}
	return nil
}
