package fiscalyear

import (
	"encoding/json"
	"fmt"

	"github.com/buchwerk/buchwerk/internal/report"
)

// snapshotVersion is bumped whenever the stored payload shape changes.
// Version 1 lacked the embedded GuV; loading still supports it and leaves
// the GuV nil for the report layer to backfill.
const snapshotVersion = 2

type snapshotEnvelope struct {
	Version  int             `json:"version"`
	Snapshot report.Snapshot `json:"snapshot"`
}

func encodeSnapshot(snap report.Snapshot) ([]byte, error) {
	return json.Marshal(snapshotEnvelope{Version: snapshotVersion, Snapshot: snap})
}

func decodeSnapshot(payload []byte) (report.Snapshot, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return report.Snapshot{}, fmt.Errorf("decode balance sheet snapshot: %w", err)
	}
	if env.Version < 1 || env.Version > snapshotVersion {
		return report.Snapshot{}, fmt.Errorf("unsupported snapshot version %d", env.Version)
	}
	return env.Snapshot, nil
}
