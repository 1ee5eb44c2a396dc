package controllers

import (
	"net/http"

	"github.com/droverhq/drover/internal/runtime"
	tasksvc "github.com/droverhq/drover/internal/services/tasks"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes.
type ControllerRegistry struct {
	general *GeneralController
	tasks   *TasksController
	svc     *tasksvc.Service
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime, svc *tasksvc.Service) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		tasks:   NewTasksController(rt, svc),
		svc:     svc,
	}
}

// Service returns the tasks service the controllers delegate to.
func (r *ControllerRegistry) Service() *tasksvc.Service { return r.svc }

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.tasks.RegisterRoutes(mux)
}
