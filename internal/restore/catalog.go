package restore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultCorrelationTolerance is the largest gap allowed between a restore
	// point's creation time and its shadow copy's install time.
	DefaultCorrelationTolerance = 120 * time.Second

	// DefaultNamePrefix labels suggested restore point names.
	DefaultNamePrefix = "Vortex Restore Point"

	unknownDescription = "Unknown Point"
)

// Catalog lists restore points by joining the SystemRestore class with the
// VSS shadow copies that back them.
type Catalog struct {
	gateway    CommandGateway
	logger     Logger
	tolerance  time.Duration
	namePrefix string
}

// NewCatalog creates a Catalog. A non-positive tolerance or empty prefix selects
// the defaults.
func NewCatalog(gateway CommandGateway, logger Logger, tolerance time.Duration, namePrefix string) *Catalog {
	if tolerance <= 0 {
		tolerance = DefaultCorrelationTolerance
	}
	if namePrefix == "" {
		namePrefix = DefaultNamePrefix
	}
	return &Catalog{
		gateway:    gateway,
		logger:     logger,
		tolerance:  tolerance,
		namePrefix: namePrefix,
	}
}

type restorePointRecord struct {
	SequenceNumber   looseInt    `json:"SequenceNumber"`
	Description      looseString `json:"Description"`
	CreationTime     looseString `json:"CreationTime"`
	RestorePointType lenientInt  `json:"RestorePointType"`
}

type shadowCopyRecord struct {
	ID          looseString `json:"ID"`
	InstallDate looseString `json:"InstallDate"`
}

type shadowCopy struct {
	id          string
	installedAt time.Time
}

// Scan queries both data sources and returns the correlated restore points,
// newest first. Malformed records are skipped. An error is returned only when
// the restore point query itself fails; a failed shadow copy query leaves
// every ShadowID empty.
func (c *Catalog) Scan(ctx context.Context) ([]RestorePoint, error) {
	raw, err := c.gateway.RunJSON(ctx, restorePointsScript)
	if err != nil {
		return []RestorePoint{}, fmt.Errorf("querying restore points: %w", err)
	}

	shadows := c.shadowCopies(ctx)

	points := make([]RestorePoint, 0, len(raw))
	for _, item := range raw {
		var rec restorePointRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			c.logger.Debug("skipping undecodable restore point", "error", err)
			continue
		}
		if !rec.SequenceNumber.Valid {
			c.logger.Debug("skipping restore point without sequence number")
			continue
		}

		p := RestorePoint{
			SequenceNumber:   rec.SequenceNumber.Value,
			Description:      string(rec.Description),
			RestorePointType: int(rec.RestorePointType.Value),
		}
		if p.Description == "" {
			p.Description = unknownDescription
		}
		if t, ok := ParseWMITime(string(rec.CreationTime)); ok {
			p.CreationTime = t
			p.ShadowID = correlate(t, shadows, c.tolerance)
		}
		points = append(points, p)
	}

	sortNewestFirst(points)
	c.logger.Debug("restore points scanned", "count", len(points), "shadow_copies", len(shadows))
	return points, nil
}

// List is the soft-failing form of Scan: any failure yields an empty list.
// Callers cannot distinguish "no restore points" from "scan failed"; use Scan
// when that matters.
func (c *Catalog) List(ctx context.Context) []RestorePoint {
	points, err := c.Scan(ctx)
	if err != nil {
		c.logger.Warn("restore point scan failed", "error", err)
		return []RestorePoint{}
	}
	return points
}

// GenerateNextName suggests a label for a new restore point based on the
// number of points that currently exist.
func (c *Catalog) GenerateNextName(ctx context.Context) string {
	return fmt.Sprintf("%s #%d", c.namePrefix, len(c.List(ctx))+1)
}

func (c *Catalog) shadowCopies(ctx context.Context) []shadowCopy {
	raw, err := c.gateway.RunJSON(ctx, shadowCopiesScript)
	if err != nil {
		c.logger.Warn("shadow copy query failed, restore points will lack shadow ids", "error", err)
		return nil
	}

	shadows := make([]shadowCopy, 0, len(raw))
	for _, item := range raw {
		var rec shadowCopyRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			continue
		}
		installedAt, ok := ParseWMITime(string(rec.InstallDate))
		if !ok || rec.ID == "" {
			continue
		}
		shadows = append(shadows, shadowCopy{id: string(rec.ID), installedAt: installedAt})
	}
	return shadows
}

// correlate returns the id of the shadow copy installed closest to created,
// or "" when none lies within tolerance. Ties keep the earliest candidate.
func correlate(created time.Time, shadows []shadowCopy, tolerance time.Duration) string {
	best := ""
	bestDiff := time.Duration(-1)
	for _, s := range shadows {
		diff := created.Sub(s.installedAt)
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			continue
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = s.id, diff
		}
	}
	return best
}

// sortNewestFirst orders points by creation time descending. Points with the
// zero (unparsed) time land at the end.
func sortNewestFirst(points []RestorePoint) {
	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if !a.CreationTime.Equal(b.CreationTime) {
			return a.CreationTime.After(b.CreationTime)
		}
		return a.SequenceNumber > b.SequenceNumber
	})
}

// looseString accepts a JSON string, number, boolean or null.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = looseString(x)
	default:
		*s = looseString(strings.TrimSpace(string(b)))
	}
	return nil
}

// lenientInt is a looseInt for informational fields. A value that does not
// parse decodes as invalid instead of failing the whole record.
type lenientInt struct {
	looseInt
}

func (n *lenientInt) UnmarshalJSON(b []byte) error {
	if err := n.looseInt.UnmarshalJSON(b); err != nil {
		n.looseInt = looseInt{}
	}
	return nil
}

// looseInt accepts a JSON integer or a string holding one. Valid is false for
// null; anything else unparseable is a decode error.
type looseInt struct {
	Value int64
	Valid bool
}

func (n *looseInt) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	var text string
	switch x := v.(type) {
	case nil:
		*n = looseInt{}
		return nil
	case string:
		text = strings.TrimSpace(x)
	case float64:
		text = strings.TrimSpace(string(b))
	default:
		return fmt.Errorf("not an integer: %s", b)
	}
	parsed, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %w", err)
	}
	*n = looseInt{Value: parsed, Valid: true}
	return nil
}
