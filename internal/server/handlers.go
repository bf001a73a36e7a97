package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/index"
)

var writeErrors = []int{
	http.StatusBadRequest,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusInternalServerError,
}

func registerProjects(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			ID:          input.Body.ID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: e.ListProjects()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.Project(input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		p, err := e.UpdateProject(ctx, engine.ProjectUpdateOptions{
			ID:          input.ProjectID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-project",
		Method:        http.MethodDelete,
		Path:          "/projects/{project_id}",
		Summary:       "Delete project",
		DefaultStatus: http.StatusNoContent,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Reason    string `query:"reason"`
	}) (*struct{}, error) {
		if err := e.DeleteProject(ctx, input.ProjectID, input.Reason); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMilestones(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-milestone",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/milestones",
		Summary:       "Create milestone",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		ProjectID string                 `path:"project_id"`
		Body      CreateMilestoneRequest `json:"body"`
	}) (*struct {
		Body domain.Milestone `json:"body"`
	}, error) {
		m, err := e.CreateMilestone(ctx, engine.MilestoneCreateOptions{
			ID:          input.Body.ID,
			ProjectID:   input.ProjectID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			DueDate:     input.Body.DueDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Milestone `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-milestones",
		Method:      http.MethodGet,
		Path:        "/milestones",
		Summary:     "List milestones",
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
	}) (*struct {
		Body []domain.Milestone `json:"body"`
	}, error) {
		return &struct {
			Body []domain.Milestone `json:"body"`
		}{Body: e.ListMilestones(input.ProjectID)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-milestone",
		Method:      http.MethodGet,
		Path:        "/milestones/{milestone_id}",
		Summary:     "Get milestone",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MilestoneID string `path:"milestone_id"`
	}) (*struct {
		Body domain.Milestone `json:"body"`
	}, error) {
		m, err := e.Milestone(input.MilestoneID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Milestone `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-milestone",
		Method:      http.MethodPatch,
		Path:        "/milestones/{milestone_id}",
		Summary:     "Update milestone",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		MilestoneID string                 `path:"milestone_id"`
		Body        UpdateMilestoneRequest `json:"body"`
	}) (*struct {
		Body domain.Milestone `json:"body"`
	}, error) {
		m, err := e.UpdateMilestone(ctx, engine.MilestoneUpdateOptions{
			ID:          input.MilestoneID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			DueDate:     input.Body.DueDate,
			ClearDue:    input.Body.ClearDue,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Milestone `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-milestone",
		Method:        http.MethodDelete,
		Path:          "/milestones/{milestone_id}",
		Summary:       "Delete milestone",
		DefaultStatus: http.StatusNoContent,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		MilestoneID string `path:"milestone_id"`
		Reason      string `query:"reason"`
	}) (*struct{}, error) {
		if err := e.DeleteMilestone(ctx, input.MilestoneID, input.Reason); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-milestone-dependency",
		Method:        http.MethodPost,
		Path:          "/milestones/{milestone_id}/dependencies",
		Summary:       "Add milestone dependency",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		MilestoneID string               `path:"milestone_id"`
		Body        AddDependencyRequest `json:"body"`
	}) (*struct {
		Body domain.Milestone `json:"body"`
	}, error) {
		m, err := e.AddMilestoneDependency(ctx, input.MilestoneID, input.Body.DependsOn)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Milestone `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-milestone-dependency",
		Method:      http.MethodDelete,
		Path:        "/milestones/{milestone_id}/dependencies/{depends_on}",
		Summary:     "Remove milestone dependency",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		MilestoneID string `path:"milestone_id"`
		DependsOn   string `path:"depends_on"`
	}) (*struct {
		Body domain.Milestone `json:"body"`
	}, error) {
		m, err := e.RemoveMilestoneDependency(ctx, input.MilestoneID, input.DependsOn)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Milestone `json:"body"`
		}{Body: m}, nil
	})
}

func registerTasks(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/milestones/{milestone_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		MilestoneID string            `path:"milestone_id"`
		Body        CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			ID:              input.Body.ID,
			MilestoneID:     input.MilestoneID,
			Title:           input.Body.Title,
			Description:     input.Body.Description,
			Priority:        domain.Priority(input.Body.Priority),
			EstimatedPoints: input.Body.EstimatedPoints,
			Tags:            input.Body.Tags,
			DependsOn:       input.Body.DependsOn,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		MilestoneID string `query:"milestone_id"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: e.ListTasks(input.MilestoneID)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.Task(input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		var prio *domain.Priority
		if input.Body.Priority != nil {
			p := domain.Priority(*input.Body.Priority)
			prio = &p
		}
		t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{
			ID:              input.TaskID,
			Title:           input.Body.Title,
			Description:     input.Body.Description,
			Priority:        prio,
			EstimatedPoints: input.Body.EstimatedPoints,
			Tags:            input.Body.Tags,
			TagsSet:         input.Body.TagsSet,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{task_id}",
		Summary:       "Delete task",
		DefaultStatus: http.StatusNoContent,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Reason string `query:"reason"`
	}) (*struct{}, error) {
		if err := e.DeleteTask(ctx, input.TaskID, input.Reason); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	registerTaskAction(api, "start-task", "/tasks/{task_id}/start", func(ctx context.Context, taskID string) (domain.Task, error) {
		return e.StartTask(ctx, taskID)
	})
	registerTaskAction(api, "unblock-task", "/tasks/{task_id}/unblock", func(ctx context.Context, taskID string) (domain.Task, error) {
		return e.UnblockTask(ctx, taskID)
	})

	huma.Register(api, huma.Operation{
		OperationID: "block-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/block",
		Summary:     "Block task",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string           `path:"task_id"`
		Body   BlockTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.BlockTask(ctx, input.TaskID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/complete",
		Summary:     "Complete task",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string              `path:"task_id"`
		Body   CompleteTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.CompleteTask(ctx, input.TaskID, input.Body.ActualPoints)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-task-dependency",
		Method:        http.MethodPost,
		Path:          "/tasks/{task_id}/dependencies",
		Summary:       "Add task dependency",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string               `path:"task_id"`
		Body   AddDependencyRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.AddTaskDependency(ctx, input.TaskID, input.Body.DependsOn)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-task-dependency",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}/dependencies/{depends_on}",
		Summary:     "Remove task dependency",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		TaskID    string `path:"task_id"`
		DependsOn string `path:"depends_on"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := e.RemoveTaskDependency(ctx, input.TaskID, input.DependsOn)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})
}

func registerTaskAction(api huma.API, opID, route string, action func(context.Context, string) (domain.Task, error)) {
	huma.Register(api, huma.Operation{
		OperationID: opID,
		Method:      http.MethodPost,
		Path:        route,
		Summary:     "Task action",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := action(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})
}

func registerEvents(api huma.API, ix *index.Index) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
	}, func(ctx context.Context, input *struct {
		Limit    int    `query:"limit" default:"20" minimum:"1" maximum:"500"`
		Type     string `query:"type"`
		EntityID string `query:"entity_id"`
		Since    string `query:"since" format:"date-time"`
		Until    string `query:"until" format:"date-time"`
	}) (*struct {
		Body []index.Row `json:"body"`
	}, error) {
		if ix == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "event index not enabled", nil)
		}
		if input.Since != "" || input.Until != "" {
			start, end, err := parseRange(input.Since, input.Until)
			if err != nil {
				return nil, handleError(err)
			}
			rows, err := ix.ByTimeRange(ctx, start, end)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body []index.Row `json:"body"`
			}{Body: rows}, nil
		}
		rows, err := ix.Latest(ctx, input.Limit, index.QueryFilters{Type: input.Type, EntityID: input.EntityID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []index.Row `json:"body"`
		}{Body: rows}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-event",
		Method:      http.MethodGet,
		Path:        "/events/{event_id}",
		Summary:     "Get one event",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EventID string `path:"event_id"`
	}) (*struct {
		Body index.Row `json:"body"`
	}, error) {
		if ix == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "event index not enabled", nil)
		}
		row, err := ix.ByID(ctx, input.EventID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body index.Row `json:"body"`
		}{Body: row}, nil
	})
}

func parseRange(since, until string) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Now().UTC()
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return start, end, domain.Validationf("invalid since %q: expected RFC3339", since)
		}
		start = t
	}
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return start, end, domain.Validationf("invalid until %q: expected RFC3339", until)
		}
		end = t
	}
	return start, end, nil
}
