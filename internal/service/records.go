package service

import (
	"errors"
	"fmt"
	"net/http"
	"vkusync-backend/internal/plugins"
	"vkusync-backend/internal/store"
	"vkusync-backend/pkg/serviceutil"
)

type StudentsResponse struct {
	Count    int             `json:"count"`
	Students []store.Student `json:"students"`
}

type ProgressResponse struct {
	Progress []store.Progress      `json:"progress"`
	Summary  store.ProgressSummary `json:"summary"`
}

type StatsResponse struct {
	TotalStudents  int64    `json:"total_students"`
	TotalFaculties int      `json:"total_faculties"`
	TotalMajors    int      `json:"total_majors"`
	Faculties      []string `json:"faculties"`
	Majors         []string `json:"majors"`
}

type PluginsResponse struct {
	Count   int            `json:"count"`
	Plugins []plugins.Info `json:"plugins"`
}

func (s Service) storeFailure(w http.ResponseWriter, err error) {
	s.tel.ReportBroken(report_records, err)
	serviceutil.WriteError(w, http.StatusInternalServerError, "failed to read records")
}

// requireStudent writes the error response and reports false when the student path
// parameter does not name one of the owner's students.
func (s Service) requireStudent(w http.ResponseWriter, r *http.Request) (owner, studentID string, ok bool) {
	owner = OwnerFromContext(r.Context())
	studentID = r.PathValue("id")
	_, err := s.records.GetStudent(r.Context(), owner, studentID)
	if errors.Is(err, store.ErrNotFound) {
		serviceutil.WriteError(w, http.StatusNotFound, "student not found")
		return "", "", false
	}
	if err != nil {
		s.storeFailure(w, err)
		return "", "", false
	}
	return owner, studentID, true
}

func (s Service) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.records.ListStudents(r.Context(), OwnerFromContext(r.Context()))
	if err != nil {
		s.storeFailure(w, err)
		return
	}
	if students == nil {
		students = []store.Student{}
	}
	serviceutil.WriteJson(w, http.StatusOK, StudentsResponse{Count: len(students), Students: students})
}

func (s Service) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	student, err := s.records.GetStudent(r.Context(), OwnerFromContext(r.Context()), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		serviceutil.WriteError(w, http.StatusNotFound, "student not found")
		return
	}
	if err != nil {
		s.storeFailure(w, err)
		return
	}
	serviceutil.WriteJson(w, http.StatusOK, student)
}

func (s Service) handleListGrades(w http.ResponseWriter, r *http.Request) {
	owner, studentID, ok := s.requireStudent(w, r)
	if !ok {
		return
	}
	grades, err := s.records.ListGrades(r.Context(), owner, studentID)
	if err != nil {
		s.storeFailure(w, err)
		return
	}
	if grades == nil {
		grades = []store.Grade{}
	}
	serviceutil.WriteJson(w, http.StatusOK, grades)
}

func (s Service) handleListProgress(w http.ResponseWriter, r *http.Request) {
	owner, studentID, ok := s.requireStudent(w, r)
	if !ok {
		return
	}
	progress, err := s.records.ListProgress(r.Context(), owner, studentID)
	if err != nil {
		s.storeFailure(w, err)
		return
	}
	if progress == nil {
		progress = []store.Progress{}
	}
	serviceutil.WriteJson(w, http.StatusOK, ProgressResponse{
		Progress: progress,
		Summary:  store.SummarizeProgress(progress),
	})
}

func (s Service) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	owner, studentID, ok := s.requireStudent(w, r)
	if !ok {
		return
	}
	summaries, err := s.records.ListSummaries(r.Context(), owner, studentID)
	if err != nil {
		s.storeFailure(w, err)
		return
	}
	if summaries == nil {
		summaries = []store.Summary{}
	}
	serviceutil.WriteJson(w, http.StatusOK, summaries)
}

func (s Service) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.records.Stats(r.Context(), OwnerFromContext(r.Context()))
	if err != nil {
		s.storeFailure(w, err)
		return
	}
	serviceutil.WriteJson(w, http.StatusOK, StatsResponse{
		TotalStudents:  stats.Students,
		TotalFaculties: len(stats.Faculties),
		TotalMajors:    len(stats.Majors),
		Faculties:      stats.Faculties,
		Majors:         stats.Majors,
	})
}

func (s Service) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	infos := s.registry.List()
	serviceutil.WriteJson(w, http.StatusOK, PluginsResponse{Count: len(infos), Plugins: infos})
}

func (s Service) handleTogglePlugin(enabled bool) http.HandlerFunc {
	verb := "disabled"
	if enabled {
		verb = "enabled"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var err error
		if enabled {
			err = s.registry.Enable(id)
		} else {
			err = s.registry.Disable(id)
		}
		if errors.Is(err, plugins.ErrNotFound) {
			serviceutil.WriteError(w, http.StatusNotFound, fmt.Sprintf("plugin %s not found", id))
			return
		}
		if err != nil {
			s.tel.ReportWarning(report_plugin, id, err)
			serviceutil.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		serviceutil.WriteJson(w, http.StatusOK, StatusResponse{
			Success: true,
			Message: fmt.Sprintf("plugin %s %s", id, verb),
		})
	}
}
