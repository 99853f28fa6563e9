package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ecolehub/presence-api/internal/models"
	appErrors "github.com/ecolehub/presence-api/pkg/errors"
	"github.com/ecolehub/presence-api/pkg/export"
)

var reportHeaders = []string{"Student", "Present", "Absent", "Late", "Excused", "Presence %"}

// ClassroomReport renders the per-student presence table for a classroom as
// CSV or PDF. Access follows the same rule as classroom statistics.
func (s *AttendanceService) ClassroomReport(ctx context.Context, claims *models.JWTClaims, classroomID, format string, req StatsRequest) ([]byte, string, string, error) {
	if format != "csv" && format != "pdf" {
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, `format must be "csv" or "pdf"`)
	}

	stats, err := s.ClassroomStats(ctx, claims, classroomID, req)
	if err != nil {
		return nil, "", "", err
	}

	dataset := export.Dataset{Headers: reportHeaders}
	for _, student := range stats.Students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":    student.FirstName + " " + student.LastName,
			"Present":    strconv.Itoa(student.Stats.TotalPresent),
			"Absent":     strconv.Itoa(student.Stats.TotalAbsent),
			"Late":       strconv.Itoa(student.Stats.TotalLate),
			"Excused":    strconv.Itoa(student.Stats.TotalExcused),
			"Presence %": fmt.Sprintf("%.1f", student.Stats.PresentPercentage),
		})
	}

	if format == "pdf" {
		payload, err := export.NewPDFExporter().Render(dataset, "Attendance Report")
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance report")
		}
		return payload, fmt.Sprintf("attendance-%s.pdf", classroomID), "application/pdf", nil
	}
	payload, err := export.NewCSVExporter().Render(dataset)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance report")
	}
	return payload, fmt.Sprintf("attendance-%s.csv", classroomID), "text/csv", nil
}
