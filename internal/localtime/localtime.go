// Package localtime renders stored UTC Unix-second instants as viewer-local
// wall-clock time with a readable timezone label.
//
// Rendering is two-phase: a server pass that does not yet know the viewer's
// timezone passes "" and gets a neutral UTC placeholder; once the viewer
// reports its IANA zone the caller renders again with that id.
package localtime

import (
	"embed"
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // zone lookups must not depend on the host's zoneinfo

	"gopkg.in/yaml.v3"
)

//go:embed zonedata/abbreviations.yml
var zoneFS embed.FS

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type abbreviation struct {
	Std string `yaml:"std"`
	DST string `yaml:"dst"`
}

var (
	loadOnce sync.Once
	byID     map[string]abbreviation
	loadErr  error
)

func load() {
	loadOnce.Do(func() {
		data, err := zoneFS.ReadFile("zonedata/abbreviations.yml")
		if err != nil {
			loadErr = err
			return
		}
		var f struct {
			Zones map[string]abbreviation `yaml:"zones"`
		}
		if err := yaml.Unmarshal(data, &f); err != nil {
			loadErr = err
			return
		}
		byID = f.Zones
	})
}

// Load surfaces any error decoding the embedded table. Optional; call at
// startup to fail fast.
func Load() error {
	load()
	return loadErr
}

// Rendering is one instant projected into a viewer's timezone.
type Rendering struct {
	Instant     time.Time `json:"-"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Label       string    `json:"label"`
	TimezoneID  string    `json:"timezone"`
	Placeholder bool      `json:"placeholder,omitempty"`
}

// ToViewerLocal projects utcSeconds into viewerTZ. An empty viewerTZ yields the
// UTC placeholder pass; an id that cannot be loaded falls back to UTC with an
// empty label. It never fails.
func ToViewerLocal(utcSeconds int64, viewerTZ string) Rendering {
	instant := time.Unix(utcSeconds, 0).UTC()

	tz := strings.TrimSpace(viewerTZ)
	if tz == "" {
		return render(instant, "UTC", "UTC", true)
	}

	loc, ok := loadLocation(tz)
	if !ok {
		return render(instant, "UTC", "", false)
	}

	local := instant.In(loc)
	return render(local, tz, Abbreviation(tz, local), false)
}

func render(t time.Time, tzID, label string, placeholder bool) Rendering {
	return Rendering{
		Instant:     t,
		Date:        t.Format(dateLayout),
		Time:        t.Format(timeLayout),
		Label:       label,
		TimezoneID:  tzID,
		Placeholder: placeholder,
	}
}

// Abbreviation returns the curated label for tzID at t, falling back to the
// runtime's short zone name.
func Abbreviation(tzID string, t time.Time) string {
	load()
	if a, ok := byID[tzID]; ok && a.Std != "" {
		if a.DST != "" && onSummerOffset(t) {
			return a.DST
		}
		return a.Std
	}
	name, _ := t.Zone()
	return name
}

// onSummerOffset reports whether t is ahead of the smaller of its zone's
// January and July offsets that year. time.Time.IsDST follows the tz database
// flag, which is inverted for zones with negative DST such as Europe/Dublin.
func onSummerOffset(t time.Time) bool {
	loc := t.Location()
	_, jan := time.Date(t.Year(), time.January, 1, 12, 0, 0, 0, loc).Zone()
	_, jul := time.Date(t.Year(), time.July, 1, 12, 0, 0, 0, loc).Zone()
	if jan == jul {
		return false
	}
	_, off := t.Zone()
	return off > min(jan, jul)
}

// loadLocation rejects "Local" so output never depends on the server's zone.
func loadLocation(tz string) (*time.Location, bool) {
	if strings.EqualFold(tz, "local") {
		return nil, false
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, false
	}
	return loc, true
}

// Display formats the rendering for humans, e.g. "Sun, Mar 24, 2024 5:30 AM IST".
func (r Rendering) Display() string {
	s := r.Instant.Format("Mon, Jan 2, 2006 3:04 PM")
	if r.Label != "" {
		s += " " + r.Label
	}
	return s
}

// Span renders a start/end pair in the same zone, e.g. for events.
type Span struct {
	Start Rendering `json:"start"`
	End   Rendering `json:"end"`
}

// ToViewerSpan renders both ends of a range. The end is clamped to the start
// when stored out of order.
func ToViewerSpan(startSeconds, endSeconds int64, viewerTZ string) Span {
	if endSeconds < startSeconds {
		endSeconds = startSeconds
	}
	return Span{
		Start: ToViewerLocal(startSeconds, viewerTZ),
		End:   ToViewerLocal(endSeconds, viewerTZ),
	}
}

// String implements fmt.Stringer.
func (s Span) String() string {
	if s.Start.Date == s.End.Date {
		return fmt.Sprintf("%s – %s", s.Start.Display(), s.End.Instant.Format("3:04 PM"))
	}
	return fmt.Sprintf("%s – %s", s.Start.Display(), s.End.Display())
}
