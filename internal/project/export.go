package project

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"projecttracker/internal/model"
)

var exportHeader = []string{
	"ID", "Name", "Description", "Status", "Project Stage", "Project Manager",
	"Progress (%)", "Remarks", "Project Type", "BU", "Created At",
}

// Export writes the filtered projects as CSV.
func (s *Service) Export(ctx context.Context, w io.Writer, f Filter) error {
	projects, err := s.List(ctx, f)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range projects {
		if err := cw.Write(s.exportRow(p)); err != nil {
			return fmt.Errorf("write csv row %s: %w", p.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Service) exportRow(p model.Project) []string {
	created := ""
	if !p.CreatedAt.IsZero() {
		created = p.CreatedAt.UTC().Format(model.DateLayout)
	}
	return []string{
		p.ID,
		p.Name,
		p.Description,
		string(p.Status),
		s.engine.Registry().Label(p.CurrentStage),
		p.Assignee,
		strconv.Itoa(p.Progress),
		p.Remarks,
		p.ProjectType,
		p.BusinessUnit,
		created,
	}
}
