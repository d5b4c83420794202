package core

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"carepath/internal/events"
	"carepath/pkg"
)

//go:embed demo_patients.json
var demoPatientsJSON []byte

// DemoPatients returns the sample patients shown on the clinician dashboard
// of a fresh installation.
func DemoPatients() ([]pkg.UserData, error) {
	var out []pkg.UserData
	if err := json.Unmarshal(demoPatientsJSON, &out); err != nil {
		return nil, fmt.Errorf("decode demo patients: %w", err)
	}
	return out, nil
}

// SeedDemo stores the demo patients with their logs and history and returns
// their ids.  No sessions are opened for them.
func (s *Service) SeedDemo(ctx context.Context) ([]string, error) {
	patients, err := DemoPatients()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(patients))
	for i := range patients {
		snapshot := patients[i]
		shell := snapshot
		shell.StatusLogs, shell.History = nil, nil
		if err := s.createProfile(ctx, &shell); err != nil {
			return ids, fmt.Errorf("seed %s: %w", snapshot.Name, err)
		}
		if _, err := s.ImportProfile(ctx, shell.ID, &snapshot); err != nil {
			return ids, fmt.Errorf("seed %s: %w", snapshot.Name, err)
		}
		ids = append(ids, shell.ID)
	}
	s.logger.Info().Int("count", len(ids)).Str("event", events.ProfileCreated).Msg("demo patients seeded")
	return ids, nil
}
