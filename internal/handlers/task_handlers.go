package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"taskReminder/internal/handlers/dto"
	"taskReminder/internal/logger"
	"taskReminder/internal/models/task"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TaskHandler struct {
	TaskService Service
	Events      EventFeed
}

func NewTaskHandler(taskService Service, events EventFeed) *TaskHandler {
	return &TaskHandler{
		TaskService: taskService,
		Events:      events,
	}
}

// Register вешает маршруты API на роутер
func (h *TaskHandler) Register(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Get("/events", h.GetEvents) // GET /events?after=seq

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.GetTasks)  // GET /tasks?q=term
		r.Post("/", h.PostTask) // POST /tasks

		r.Route("/{index}", func(r chi.Router) {
			r.Get("/", h.GetTask)       // GET /tasks/{index}
			r.Put("/", h.UpdateTask)    // PUT /tasks/{index}
			r.Delete("/", h.DeleteTask) // DELETE /tasks/{index}

			r.Put("/priority", h.SetPriority) // PUT /tasks/{index}/priority
			r.Post("/done", h.Done)           // POST /tasks/{index}/done
			r.Post("/cancel", h.Cancel)       // POST /tasks/{index}/cancel
			r.Post("/postpone", h.Postpone)   // POST /tasks/{index}/postpone
		})
	})
}

func (h *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := h.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Warn("HTTP: Хранилище недоступно", zap.Error(err))
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("service", "task-reminder"),
			toPayload("status", "unavailable"),
			toPayload("error", err.Error()))
		return
	}

	responseWithJSON(w, http.StatusOK,
		toPayload("service", "task-reminder"),
		toPayload("status", "ok"),
		toPayload("time", time.Now().Format(time.RFC3339)))
}

func (h *TaskHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var tasks []dto.TaskResponse
	if term := r.URL.Query().Get("q"); term != "" {
		tasks = dto.FromIndexed(h.TaskService.Search(term))
	} else {
		tasks = dto.FromTaskList(h.TaskService.CurrentTasks())
	}

	logger.Info("HTTP_OUT: Задачи получены",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("tasks", tasks))
}

func (h *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return
	}

	var request dto.CreateTaskRequest
	if err := decodeJSON(w, r, &request, false); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	priority, err := task.ParsePriority(request.Priority)
	if err != nil {
		logger.Warn("HTTP: Ошибка валидации",
			zap.String("field", "priority"),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.TaskService.AddTask(r.Context(), request.Description, request.DueAt, request.RepeatUntil, priority)
	if err != nil {
		respondServiceError(w, r, err, "add_task")
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", created.Task.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	writeJSON(w, http.StatusCreated, dto.FromTask(created.Index, created.Task))
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	index, ok := h.index(w, r)
	if !ok {
		return
	}

	t, err := h.TaskService.GetTask(index)
	if err != nil {
		respondServiceError(w, r, err, "get_task")
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTask(index, t))
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	index, ok := h.index(w, r)
	if !ok {
		return
	}

	var request dto.UpdateTaskRequest
	if err := decodeJSON(w, r, &request, false); err != nil {
		logger.Warn("HTTP: ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "неверно переданы параметры обновления: "+err.Error())
		return
	}

	var options []task.TaskOption
	if request.Description != nil {
		if strings.TrimSpace(*request.Description) == "" {
			responseWithError(w, http.StatusBadRequest, "описание не может быть пустым")
			return
		}
		options = append(options, task.WithDescription(*request.Description))
	}
	if request.DueAt != nil {
		options = append(options, task.WithDueAt(*request.DueAt))
	}
	if request.RepeatUntil != nil {
		options = append(options, task.WithRepeatUntil(*request.RepeatUntil))
	}
	if request.Priority != nil {
		priority, err := task.ParsePriority(*request.Priority)
		if err != nil {
			responseWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		options = append(options, task.WithPriority(priority))
	}

	updated, err := h.TaskService.EditTask(r.Context(), index, options...)
	if err != nil {
		respondServiceError(w, r, err, "edit_task")
		return
	}

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.Int("index", index),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.FromTask(index, updated))
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	index, ok := h.index(w, r)
	if !ok {
		return
	}

	if _, err := h.TaskService.DeleteTask(r.Context(), index); err != nil {
		respondServiceError(w, r, err, "delete_task")
		return
	}

	logger.Info("HTTP_OUT: Задача удалена",
		zap.Int("index", index),
		zap.Int("http_status", http.StatusNoContent))
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) SetPriority(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	index, ok := h.index(w, r)
	if !ok {
		return
	}

	var request dto.PriorityRequest
	if err := decodeJSON(w, r, &request, false); err != nil {
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}
	priority, err := task.ParsePriority(request.Priority)
	if err != nil {
		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.TaskService.SetPriority(r.Context(), index, priority)
	if err != nil {
		respondServiceError(w, r, err, "set_priority")
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTask(index, updated))
}

// Done, Cancel и Postpone - ответы на оповещение о сроке
func (h *TaskHandler) Done(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	index, ok := h.index(w, r)
	if !ok {
		return
	}

	removed, err := h.TaskService.Done(r.Context(), index)
	if err != nil {
		respondServiceError(w, r, err, "done")
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTask(index, removed))
}

func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	index, ok := h.index(w, r)
	if !ok {
		return
	}

	t, err := h.TaskService.Cancel(r.Context(), index)
	if err != nil {
		respondServiceError(w, r, err, "cancel")
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTask(index, t))
}

func (h *TaskHandler) Postpone(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	index, ok := h.index(w, r)
	if !ok {
		return
	}

	var request dto.PostponeRequest
	if err := decodeJSON(w, r, &request, true); err != nil {
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}

	postponed, err := h.TaskService.Postpone(r.Context(), index, request.Minutes)
	if err != nil {
		respondServiceError(w, r, err, "postpone")
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTask(index, postponed))
}

func (h *TaskHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			logger.Warn("HTTP: Неверное значение параметра",
				zap.String("query", "after"),
				zap.String("client_ip", r.RemoteAddr))
			responseWithError(w, http.StatusBadRequest, "неверное значение after")
			return
		}
		after = parsed
	}

	responseWithJSON(w, http.StatusOK, toPayload("events", h.Events.After(after)))
}

func (h *TaskHandler) index(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := indexParam(r)
	if err != nil {
		logger.Warn("HTTP: Не удалось получить индекс",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return index, true
}
