package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"todolists/internal/lists"
	"todolists/internal/session"
)

// Visit is one request's view of a visitor's session.
type Visit struct {
	ID   string
	Data session.Data
	// Fresh is set when the request carried no usable session.
	Fresh bool
}

type Service struct {
	store   session.Store
	cookies *session.Cookies
	logger  *log.Logger
}

func New(store session.Store, cookies *session.Cookies, logger *log.Logger) *Service {
	return &Service{
		store:   store,
		cookies: cookies,
		logger:  logger,
	}
}

// LoadSession returns the visitor's session, starting an empty one when the
// cookie is missing or invalid or the backend no longer knows the id.
func (s *Service) LoadSession(ctx context.Context, r *http.Request) (*Visit, error) {
	id, ok := s.cookies.Read(r)
	if !ok {
		return s.freshVisit(), nil
	}
	data, err := s.store.Load(ctx, id)
	if err == nil {
		return &Visit{ID: id, Data: data}, nil
	}
	if errors.Is(err, session.ErrNotFound) {
		return s.freshVisit(), nil
	}
	var ie *lists.IntegrityError
	if errors.As(err, &ie) {
		s.logger.Warn("discarding corrupt session", "session", id, "err", err)
		return s.freshVisit(), nil
	}
	return nil, fmt.Errorf("load session: %w", err)
}

func (s *Service) freshVisit() *Visit {
	return &Visit{ID: session.NewID(), Data: session.New(), Fresh: true}
}

// SaveSession writes the session back and refreshes the cookie. It must run
// before the response status is written.
func (s *Service) SaveSession(ctx context.Context, w http.ResponseWriter, v *Visit) error {
	if err := s.store.Save(ctx, v.ID, v.Data, s.cookies.TTL); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := s.cookies.Write(w, v.ID); err != nil {
		return err
	}
	if v.Fresh {
		s.logger.Debug("session started", "session", v.ID)
		v.Fresh = false
	}
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// fail records err as the visitor's error flash and returns it as a
// DomainError.
func (s *Service) fail(v *Visit, err error) error {
	err = fromListsError(err)
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		v.Data.Error = domainErr.Message
	}
	return err
}

func (s *Service) FindList(v *Visit, id int) (*lists.List, error) {
	list, err := v.Data.Lists.FindList(id)
	if err != nil {
		return nil, s.fail(v, err)
	}
	return list, nil
}

func (s *Service) CreateList(v *Visit, name string) (lists.List, error) {
	list, err := v.Data.Lists.CreateList(name)
	if err != nil {
		return lists.List{}, s.fail(v, err)
	}
	v.Data.Success = "The list has been created."
	return list, nil
}

func (s *Service) RenameList(v *Visit, id int, name string) error {
	if err := v.Data.Lists.RenameList(id, name); err != nil {
		return s.fail(v, err)
	}
	v.Data.Success = "The list has been updated."
	return nil
}

func (s *Service) DeleteList(v *Visit, id int) error {
	if err := v.Data.Lists.DeleteList(id); err != nil {
		return s.fail(v, err)
	}
	v.Data.Success = "The list has been deleted."
	return nil
}

func (s *Service) CompleteList(v *Visit, id int) error {
	if err := v.Data.Lists.CompleteAll(id); err != nil {
		return s.fail(v, err)
	}
	v.Data.Success = "The list has been completed."
	return nil
}

func (s *Service) AddTodo(v *Visit, listID int, text string) (lists.Todo, error) {
	todo, err := v.Data.Lists.AddTodo(listID, text)
	if err != nil {
		return lists.Todo{}, s.fail(v, err)
	}
	v.Data.Success = "The todo has been added."
	return todo, nil
}

func (s *Service) DeleteTodo(v *Visit, listID, todoID int) error {
	if err := v.Data.Lists.DeleteTodo(listID, todoID); err != nil {
		return s.fail(v, err)
	}
	v.Data.Success = "The todo has been deleted."
	return nil
}

func (s *Service) UpdateTodo(v *Visit, listID, todoID int, completed bool) error {
	if err := v.Data.Lists.SetTodoCompleted(listID, todoID, completed); err != nil {
		return s.fail(v, err)
	}
	v.Data.Success = "The todo has been updated."
	return nil
}
