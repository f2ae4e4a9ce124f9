package services

import (
	"math"

	"collabspace/models"
)

// RecomputeProgress derives progress and status from the task list. It is
// the only writer of those two fields.
func RecomputeProgress(p *models.Project) {
	total := len(p.Tasks)
	if total == 0 {
		p.Progress = 0
	} else {
		done := 0
		for _, t := range p.Tasks {
			if t.Status == models.TaskDone {
				done++
			}
		}
		p.Progress = int(math.Round(100 * float64(done) / float64(total)))
	}

	switch {
	case p.Progress == 100:
		p.Status = models.ProjectCompleted
	case p.Progress > 0:
		p.Status = models.ProjectActive
	default:
		p.Status = models.ProjectPending
	}
}
