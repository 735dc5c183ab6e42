package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"todolists/internal/lists"
)

type HTTPServer struct {
	service *Service
	views   views
	logger  *log.Logger
}

func NewHTTPServer(service *Service, logger *log.Logger) (*HTTPServer, error) {
	parsed, err := parseViews()
	if err != nil {
		return nil, err
	}
	return &HTTPServer{service: service, views: parsed, logger: logger}, nil
}

func (s *HTTPServer) Handler() http.Handler {
	staticFS, err := fs.Sub(assetsFS, "static")
	if err != nil {
		panic(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/lists", http.StatusSeeOther)
	})
	mux.HandleFunc("GET /lists", s.withVisit(s.handleLists))
	mux.HandleFunc("POST /lists", s.withVisit(s.handleListCreate))
	mux.HandleFunc("GET /lists/new", s.withVisit(s.handleListNew))
	mux.HandleFunc("GET /lists/{id}", s.withVisit(s.handleList))
	mux.HandleFunc("POST /lists/{id}", s.withVisit(s.handleListUpdate))
	mux.HandleFunc("GET /lists/{id}/edit", s.withVisit(s.handleListEdit))
	mux.HandleFunc("POST /lists/{id}/edit", s.withVisit(s.handleListUpdate))
	mux.HandleFunc("POST /lists/{id}/delete", s.withVisit(s.handleListDelete))
	mux.HandleFunc("POST /lists/{id}/complete", s.withVisit(s.handleListComplete))
	mux.HandleFunc("POST /lists/{id}/todos", s.withVisit(s.handleTodoCreate))
	mux.HandleFunc("POST /lists/{id}/todos/{todo_id}/delete", s.withVisit(s.handleTodoDelete))
	mux.HandleFunc("POST /lists/{id}/todos/{todo_id}", s.withVisit(s.handleTodoUpdate))

	return s.withMiddleware(mux)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"session_store": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["session_store"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleLists(w http.ResponseWriter, r *http.Request, v *Visit) {
	s.render(w, r, v, http.StatusOK, "lists", pageVM{
		Title: "All Lists",
		Lists: v.Data.Lists.SortLists(),
	})
}

func (s *HTTPServer) handleListNew(w http.ResponseWriter, r *http.Request, v *Visit) {
	s.render(w, r, v, http.StatusOK, "new_list", pageVM{Title: "New List"})
}

func (s *HTTPServer) handleListCreate(w http.ResponseWriter, r *http.Request, v *Visit) {
	name := r.PostFormValue("list_name")
	if _, err := s.service.CreateList(v, name); err != nil {
		if isValidation(err) {
			s.render(w, r, v, http.StatusUnprocessableEntity, "new_list", pageVM{Title: "New List", ListName: name})
			return
		}
		s.serverError(w, r, err)
		return
	}
	s.redirect(w, r, v, "/lists")
}

func (s *HTTPServer) handleList(w http.ResponseWriter, r *http.Request, v *Visit) {
	list, ok := s.loadList(w, r, v)
	if !ok {
		return
	}
	s.render(w, r, v, http.StatusOK, "list", pageVM{
		Title: list.Name,
		List:  list,
		Todos: list.SortTodos(),
	})
}

func (s *HTTPServer) handleListEdit(w http.ResponseWriter, r *http.Request, v *Visit) {
	list, ok := s.loadList(w, r, v)
	if !ok {
		return
	}
	s.render(w, r, v, http.StatusOK, "edit_list", pageVM{
		Title:    "Edit " + list.Name,
		List:     list,
		ListName: list.Name,
	})
}

func (s *HTTPServer) handleListUpdate(w http.ResponseWriter, r *http.Request, v *Visit) {
	list, ok := s.loadList(w, r, v)
	if !ok {
		return
	}
	name := r.PostFormValue("list_name")
	if err := s.service.RenameList(v, list.ID, name); err != nil {
		if isValidation(err) {
			s.render(w, r, v, http.StatusUnprocessableEntity, "edit_list", pageVM{
				Title:    "Edit " + list.Name,
				List:     list,
				ListName: name,
			})
			return
		}
		s.serverError(w, r, err)
		return
	}
	s.redirect(w, r, v, listPath(list.ID))
}

func (s *HTTPServer) handleListDelete(w http.ResponseWriter, r *http.Request, v *Visit) {
	id, ok := pathID(r, "id")
	if !ok {
		s.notFound(w, r, v, s.service.fail(v, lists.ErrListNotFound), "/lists")
		return
	}
	if err := s.service.DeleteList(v, id); err != nil {
		s.notFound(w, r, v, err, "/lists")
		return
	}
	if isXHR(r) {
		s.noContent(w, r, v, "/lists")
		return
	}
	s.redirect(w, r, v, "/lists")
}

func (s *HTTPServer) handleListComplete(w http.ResponseWriter, r *http.Request, v *Visit) {
	list, ok := s.loadList(w, r, v)
	if !ok {
		return
	}
	if err := s.service.CompleteList(v, list.ID); err != nil {
		s.notFound(w, r, v, err, "/lists")
		return
	}
	s.redirect(w, r, v, listPath(list.ID))
}

func (s *HTTPServer) handleTodoCreate(w http.ResponseWriter, r *http.Request, v *Visit) {
	list, ok := s.loadList(w, r, v)
	if !ok {
		return
	}
	text := r.PostFormValue("todo")
	if _, err := s.service.AddTodo(v, list.ID, text); err != nil {
		if isValidation(err) {
			s.render(w, r, v, http.StatusUnprocessableEntity, "list", pageVM{
				Title:    list.Name,
				List:     list,
				Todos:    list.SortTodos(),
				TodoText: text,
			})
			return
		}
		s.serverError(w, r, err)
		return
	}
	s.redirect(w, r, v, listPath(list.ID))
}

func (s *HTTPServer) handleTodoDelete(w http.ResponseWriter, r *http.Request, v *Visit) {
	listID, todoID, ok := s.todoPath(w, r, v)
	if !ok {
		return
	}
	if err := s.service.DeleteTodo(v, listID, todoID); err != nil {
		s.notFound(w, r, v, err, s.notFoundLocation(v, listID))
		return
	}
	if isXHR(r) {
		// The page removes the item itself; no flash to show later.
		v.Data.Success = ""
		s.noContent(w, r, v, "")
		return
	}
	s.redirect(w, r, v, listPath(listID))
}

func (s *HTTPServer) handleTodoUpdate(w http.ResponseWriter, r *http.Request, v *Visit) {
	listID, todoID, ok := s.todoPath(w, r, v)
	if !ok {
		return
	}
	completed := r.PostFormValue("completed") == "true"
	if err := s.service.UpdateTodo(v, listID, todoID, completed); err != nil {
		s.notFound(w, r, v, err, s.notFoundLocation(v, listID))
		return
	}
	s.redirect(w, r, v, listPath(listID))
}

type visitHandlerFunc func(http.ResponseWriter, *http.Request, *Visit)

func (s *HTTPServer) withVisit(next visitHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := s.service.LoadSession(r.Context(), r)
		if err != nil {
			s.serverError(w, r, err)
			return
		}
		next(w, r, v)
	}
}

// loadList resolves the {id} path value. An unknown or malformed id sends
// the visitor back to /lists with the not-found flash.
func (s *HTTPServer) loadList(w http.ResponseWriter, r *http.Request, v *Visit) (*lists.List, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		s.notFound(w, r, v, s.service.fail(v, lists.ErrListNotFound), "/lists")
		return nil, false
	}
	list, err := s.service.FindList(v, id)
	if err != nil {
		s.notFound(w, r, v, err, "/lists")
		return nil, false
	}
	return list, true
}

func (s *HTTPServer) todoPath(w http.ResponseWriter, r *http.Request, v *Visit) (listID, todoID int, ok bool) {
	listID, ok = pathID(r, "id")
	if !ok {
		s.notFound(w, r, v, s.service.fail(v, lists.ErrListNotFound), "/lists")
		return 0, 0, false
	}
	todoID, ok = pathID(r, "todo_id")
	if !ok {
		s.notFound(w, r, v, s.service.fail(v, lists.ErrTodoNotFound), s.notFoundLocation(v, listID))
		return 0, 0, false
	}
	return listID, todoID, true
}

// notFoundLocation is the list page when the list still exists, else /lists.
func (s *HTTPServer) notFoundLocation(v *Visit, listID int) string {
	if _, err := v.Data.Lists.FindList(listID); err != nil {
		return "/lists"
	}
	return listPath(listID)
}

// notFound answers a lookup failure: a redirect for browsers, a bare 404 for
// XHR. Anything that is not a not-found error is a server error.
func (s *HTTPServer) notFound(w http.ResponseWriter, r *http.Request, v *Visit, err error, location string) {
	if !isNotFound(err) {
		s.serverError(w, r, err)
		return
	}
	if !isXHR(r) {
		s.redirect(w, r, v, location)
		return
	}
	if err := s.service.SaveSession(r.Context(), w, v); err != nil {
		s.serverError(w, r, err)
		return
	}
	_, _, message := mapError(err)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(message))
}

func (s *HTTPServer) render(w http.ResponseWriter, r *http.Request, v *Visit, status int, page string, vm pageVM) {
	vm.Success, vm.Error = v.Data.TakeFlash()
	var buf bytes.Buffer
	if err := s.views.render(&buf, page, vm); err != nil {
		s.serverError(w, r, err)
		return
	}
	if err := s.service.SaveSession(r.Context(), w, v); err != nil {
		s.serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) redirect(w http.ResponseWriter, r *http.Request, v *Visit, location string) {
	if err := s.service.SaveSession(r.Context(), w, v); err != nil {
		s.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func (s *HTTPServer) noContent(w http.ResponseWriter, r *http.Request, v *Visit, location string) {
	if err := s.service.SaveSession(r.Context(), w, v); err != nil {
		s.serverError(w, r, err)
		return
	}
	if location != "" {
		w.Header().Set("Location", location)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", "request_id", requestIDFrom(r.Context()), "path", r.URL.Path, "err", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(requestID); err != nil || len(requestID) != 36 {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)
		if !strings.HasPrefix(r.URL.Path, "/static/") {
			writer.Header().Set("Cache-Control", "no-store")
		}

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func isXHR(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
}

func isValidation(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == "VALIDATION_ERROR"
}

func pathID(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

func listPath(id int) string {
	return "/lists/" + strconv.Itoa(id)
}
