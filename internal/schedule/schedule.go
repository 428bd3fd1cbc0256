// Package schedule defines the typed representation of the CMS schedule
// document: the default layout, standalone layouts, campaigns, overlays,
// actions, and pegged commands. ScheduleModel is read-only once built;
// the resolver package is the only consumer that interprets it against
// the current time and environment.
package schedule

import (
	"time"

	"playercore/internal/fileid"
)

// Recurrence restricts an item to a recurring weekly daypart: a set of
// active ISO weekdays (time.Monday == 1 ... time.Sunday == 0, as in the
// standard library) and a daily window. Windows that cross midnight are
// permitted; the resolver splits them into two per-day intervals.
type Recurrence struct {
	Weekdays []time.Weekday
	// FromMinute and ToMinute are minutes since local midnight,
	// [0, 1440). FromMinute > ToMinute denotes a midnight-crossing window.
	FromMinute int
	ToMinute   int
}

// Geo restricts an item to a circular region, evaluated with the
// haversine formula against env.Location.
type Geo struct {
	IsGeoAware bool
	Latitude   float64
	Longitude  float64
	RadiusKM   float64
}

// CriterionCondition enumerates the comparison operators a Criterion may use.
type CriterionCondition int

const (
	ConditionEquals CriterionCondition = iota
	ConditionNotEquals
	ConditionContains
	ConditionGreaterThan
	ConditionLessThan
	ConditionBetween
)

// CriterionType selects how Value (and, for Between, Value2) are compared:
// as strings or as numbers.
type CriterionType int

const (
	TypeString CriterionType = iota
	TypeNumber
)

// Criterion is a single predicate evaluated against the union of
// env.DisplayProperties and env.Measurements. An item with an unknown
// metric evaluates that criterion as false (spec-mandated; the source
// left it ambiguous).
type Criterion struct {
	Metric    string
	Condition CriterionCondition
	Type      CriterionType
	Value     string
	// Value2 is the upper bound for ConditionBetween; Value is the lower
	// bound in that case.
	Value2 string
}

// ScheduledLayout is a layout entry, either standalone or nested inside a
// Campaign. When nested, From/To/Priority of zero value mean "inherit
// from the campaign" (see resolver.inheritFromCampaign).
type ScheduledLayout struct {
	FileID   fileid.ID
	From     time.Time
	To       time.Time
	Priority int
	// ScheduleID identifies this scheduled entry for max-plays-per-hour
	// bucketing and for the stable secondary sort key.
	ScheduleID  string
	CampaignID  string // empty for standalone layouts
	Criteria    []Criterion
	Geo         Geo
	SyncEvent   string
	// ShareOfVoice is a percentage in (0, 100]; zero means "normal"
	// (not an interrupt layout).
	ShareOfVoice   float64
	MaxPlaysPerHour int
	Recurrence     *Recurrence
	// DurationSeconds is required for items with ShareOfVoice > 0, to
	// compute the required plays-per-hour in the interrupt algorithm.
	DurationSeconds int
	// Dependencies lists the file IDs (media, widget HTML, bundle assets)
	// this layout references, in the order the CMS declared them. The
	// Orchestrator uses it to compute a layout's missing-dependency set
	// and to order downloads so a layout's own file precedes its media.
	Dependencies []fileid.ID
}

// Campaign groups an ordered set of layouts under one priority window.
// A layout inherits the campaign's From/To/Priority when its own fields
// are zero-valued.
type Campaign struct {
	ID       string
	Priority int
	From     time.Time
	To       time.Time
	ScheduleID string
	Layouts  []ScheduledLayout
	Criteria []Criterion
	Geo      Geo
}

// OverlayLayout is scheduled like a layout but rendered on a plane above
// the main layout. Overlays do not participate in max-plays-per-hour or
// share-of-voice; several may be active at once, ordered by priority.
type OverlayLayout struct {
	FileID          fileid.ID
	From            time.Time
	To              time.Time
	Priority        int
	ScheduleID      string
	Criteria        []Criterion
	Geo             Geo
	Recurrence      *Recurrence
	DurationSeconds int
	Dependencies    []fileid.ID
}

// ActionTrigger enumerates what causes an ActionEvent to fire. The set is
// closed and platform-delegated; the core only routes it.
type ActionTrigger string

// ActionEvent is a trigger-to-effect binding: navigate to a layout or
// widget, or invoke a command.
type ActionEvent struct {
	Trigger      ActionTrigger
	NavLayoutID  *fileid.ID
	NavWidgetID  *string
	CommandCode  string
}

// ScheduledCommand is a platform command pegged to a specific time
// (collect-now, reboot, etc.).
type ScheduledCommand struct {
	Code string
	At   time.Time
	Args map[string]string
}

// Model is the full parsed schedule document.
type Model struct {
	DefaultLayoutFile fileid.ID
	Layouts           []ScheduledLayout
	Campaigns         []Campaign
	Overlays          []OverlayLayout
	Actions           []ActionEvent
	Commands          []ScheduledCommand
}
