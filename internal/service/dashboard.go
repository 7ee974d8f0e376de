package service

import (
	"context"
	"time"

	"teamflow/internal/models"
)

const (
	upcomingWindow = 7 * 24 * time.Hour
	upcomingLimit  = 10
	recentLimit    = 5
)

// Dashboard summarises the projects the actor belongs to.
type Dashboard struct {
	TaskCounts     map[models.TaskStatus]int
	ProjectCounts  map[models.ProjectStatus]int
	UpcomingTasks  []TaskView
	RecentProjects []ProjectView
}

// Dashboard is recomputed from storage on every call.
func (s *Service) Dashboard(ctx context.Context, actor models.User) (Dashboard, error) {
	out := Dashboard{
		TaskCounts: map[models.TaskStatus]int{
			models.StatusToDo:       0,
			models.StatusInProgress: 0,
			models.StatusDone:       0,
		},
		ProjectCounts: map[models.ProjectStatus]int{
			models.ProjectActive:   0,
			models.ProjectInactive: 0,
		},
		UpcomingTasks:  []TaskView{},
		RecentProjects: []ProjectView{},
	}
	if !actor.HasOrganization() {
		return out, nil
	}

	projects, err := s.store.ListMemberProjects(ctx, *actor.OrganizationID, actor.ID)
	if err != nil {
		return Dashboard{}, err
	}
	ids := make([]int64, 0, len(projects))
	var recent []models.Project
	for _, p := range projects {
		ids = append(ids, p.ID)
		out.ProjectCounts[p.Status]++
		if p.Status == models.ProjectActive && len(recent) < recentLimit {
			recent = append(recent, p)
		}
	}

	if out.TaskCounts, err = s.store.TaskStatusCounts(ctx, ids); err != nil {
		return Dashboard{}, err
	}

	now := s.store.Now()
	upcoming, err := s.store.UpcomingTasks(ctx, ids, now, now.Add(upcomingWindow), upcomingLimit)
	if err != nil {
		return Dashboard{}, err
	}
	if out.UpcomingTasks, err = s.taskViews(ctx, upcoming); err != nil {
		return Dashboard{}, err
	}
	if out.RecentProjects, err = s.projectViews(ctx, recent); err != nil {
		return Dashboard{}, err
	}
	return out, nil
}
