package restore

import (
	"context"
	"encoding/json"
	"strings"
)

// UnknownVolume labels shadow storage whose volume could not be resolved.
const UnknownVolume = "?"

// Accountant reports how much disk space shadow copies occupy.
type Accountant struct {
	gateway CommandGateway
	logger  Logger
}

func NewAccountant(gateway CommandGateway, logger Logger) *Accountant {
	return &Accountant{gateway: gateway, logger: logger}
}

type shadowStorageRecord struct {
	Drive    looseString `json:"Drive"`
	Volume   looseString `json:"Volume"`
	VolumeID looseString `json:"VolumeID"`
	Used     looseInt    `json:"Used"`
}

type volumeRecord struct {
	DeviceID    looseString `json:"DeviceID"`
	DriveLetter looseString `json:"DriveLetter"`
}

// Summarize totals shadow storage usage per volume. Records that cannot be
// decoded are skipped; a failed query yields an empty summary.
func (a *Accountant) Summarize(ctx context.Context) StorageSummary {
	summary := StorageSummary{PerVolume: map[string]int64{}}

	raw, err := a.gateway.RunJSON(ctx, shadowStorageScript)
	if err != nil {
		a.logger.Warn("shadow storage query failed", "error", err)
		return summary
	}
	if len(raw) == 0 {
		return summary
	}

	labels := a.volumeLabels(ctx)

	for _, item := range raw {
		var rec shadowStorageRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			a.logger.Debug("skipping undecodable shadow storage record", "error", err)
			continue
		}
		if !rec.Used.Valid || rec.Used.Value < 0 {
			continue
		}

		label := string(rec.Drive)
		if label == "" {
			id := string(rec.VolumeID)
			if id == "" {
				id = volumeIDFromReference(string(rec.Volume))
			}
			label = labels[id]
		}
		if label == "" {
			label = UnknownVolume
		}

		summary.TotalBytes += rec.Used.Value
		summary.PerVolume[label] += rec.Used.Value
	}

	return summary
}

// volumeLabels maps volume device ids to drive letters.
func (a *Accountant) volumeLabels(ctx context.Context) map[string]string {
	labels := map[string]string{}

	raw, err := a.gateway.RunJSON(ctx, volumesScript)
	if err != nil {
		a.logger.Warn("volume query failed, storage will be reported under "+UnknownVolume, "error", err)
		return labels
	}
	for _, item := range raw {
		var rec volumeRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			continue
		}
		if rec.DeviceID != "" && rec.DriveLetter != "" {
			labels[string(rec.DeviceID)] = string(rec.DriveLetter)
		}
	}
	return labels
}

// volumeIDFromReference extracts the DeviceID from a WMI object path such as
// Win32_Volume.DeviceID="\\\\?\\Volume{...}\\". Values that are not object
// paths are returned unchanged.
func volumeIDFromReference(ref string) string {
	const key = `DeviceID="`
	i := strings.Index(ref, key)
	if i < 0 {
		return ref
	}
	rest := ref[i+len(key):]
	end := strings.LastIndex(rest, `"`)
	if end < 0 {
		return ref
	}
	return strings.ReplaceAll(rest[:end], `\\`, `\`)
}
