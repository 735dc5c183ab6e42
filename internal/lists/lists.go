// Package lists holds the to-do list model and the rules for mutating it.
//
// A Lists value is the whole state of one visitor's session. Every mutation
// validates its input first and leaves the receiver untouched on error.
package lists

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinNameLength = 1
	MaxNameLength = 100
)

type Todo struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

type List struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Todos []Todo `json:"todos"`
}

// Lists is the ordered collection of lists owned by one session.
type Lists []List

var (
	ErrNotFound     = errors.New("not found")
	ErrListNotFound = fmt.Errorf("list %w", ErrNotFound)
	ErrTodoNotFound = fmt.Errorf("todo %w", ErrNotFound)
)

// ValidationError carries the message shown to the user when input is rejected.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func validationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// cleanName trims the input and replaces invalid UTF-8, so the name that is
// validated is the one that survives JSON encoding.
func cleanName(name string) string {
	return strings.ToValidUTF8(strings.TrimSpace(name), "\uFFFD")
}

func nameLengthOK(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= MinNameLength && n <= MaxNameLength
}

// ValidateListName checks a trimmed list name against the length and
// uniqueness rules.
func (l Lists) ValidateListName(name string) error {
	if !nameLengthOK(name) {
		return validationError("The list name must be between 1 and 100 characters.")
	}
	for _, list := range l {
		if list.Name == name {
			return validationError("The list name must be unique.")
		}
	}
	return nil
}

// ValidateTodoName checks a trimmed todo name against the length rule.
func ValidateTodoName(name string) error {
	if !nameLengthOK(name) {
		return validationError("The todo must be between 1 and 100 characters.")
	}
	return nil
}

// NextListID returns max(existing ids)+1, or 0 when there are no lists.
func (l Lists) NextListID() int {
	next := 0
	for _, list := range l {
		if list.ID >= next {
			next = list.ID + 1
		}
	}
	return next
}

// NextTodoID applies the same rule as NextListID to the list's todos.
func (list List) NextTodoID() int {
	next := 0
	for _, todo := range list.Todos {
		if todo.ID >= next {
			next = todo.ID + 1
		}
	}
	return next
}

func (l Lists) indexOf(id int) int {
	for i, list := range l {
		if list.ID == id {
			return i
		}
	}
	return -1
}

// FindList returns a pointer into the collection so callers may mutate the
// list in place.
func (l Lists) FindList(id int) (*List, error) {
	i := l.indexOf(id)
	if i < 0 {
		return nil, ErrListNotFound
	}
	return &l[i], nil
}

func (list *List) indexOfTodo(id int) int {
	for i, todo := range list.Todos {
		if todo.ID == id {
			return i
		}
	}
	return -1
}

func (list *List) FindTodo(id int) (*Todo, error) {
	i := list.indexOfTodo(id)
	if i < 0 {
		return nil, ErrTodoNotFound
	}
	return &list.Todos[i], nil
}

func (l *Lists) CreateList(name string) (List, error) {
	name = cleanName(name)
	if err := l.ValidateListName(name); err != nil {
		return List{}, err
	}
	list := List{ID: l.NextListID(), Name: name, Todos: []Todo{}}
	*l = append(*l, list)
	return list, nil
}

// RenameList checks uniqueness against every list, the renamed one included.
func (l Lists) RenameList(id int, name string) error {
	list, err := l.FindList(id)
	if err != nil {
		return err
	}
	name = cleanName(name)
	if err := l.ValidateListName(name); err != nil {
		return err
	}
	list.Name = name
	return nil
}

func (l *Lists) DeleteList(id int) error {
	i := l.indexOf(id)
	if i < 0 {
		return ErrListNotFound
	}
	*l = append((*l)[:i:i], (*l)[i+1:]...)
	return nil
}

func (l Lists) CompleteAll(id int) error {
	list, err := l.FindList(id)
	if err != nil {
		return err
	}
	for i := range list.Todos {
		list.Todos[i].Completed = true
	}
	return nil
}

func (l Lists) AddTodo(listID int, text string) (Todo, error) {
	list, err := l.FindList(listID)
	if err != nil {
		return Todo{}, err
	}
	text = cleanName(text)
	if err := ValidateTodoName(text); err != nil {
		return Todo{}, err
	}
	todo := Todo{ID: list.NextTodoID(), Name: text}
	list.Todos = append(list.Todos, todo)
	return todo, nil
}

func (l Lists) DeleteTodo(listID, todoID int) error {
	list, err := l.FindList(listID)
	if err != nil {
		return err
	}
	i := list.indexOfTodo(todoID)
	if i < 0 {
		return ErrTodoNotFound
	}
	list.Todos = append(list.Todos[:i:i], list.Todos[i+1:]...)
	return nil
}

func (l Lists) SetTodoCompleted(listID, todoID int, completed bool) error {
	list, err := l.FindList(listID)
	if err != nil {
		return err
	}
	todo, err := list.FindTodo(todoID)
	if err != nil {
		return err
	}
	todo.Completed = completed
	return nil
}

// Clone returns a deep copy so a caller can mutate without touching the
// original slices.
func (l Lists) Clone() Lists {
	if l == nil {
		return nil
	}
	out := make(Lists, len(l))
	for i, list := range l {
		out[i] = List{ID: list.ID, Name: list.Name, Todos: append([]Todo{}, list.Todos...)}
	}
	return out
}
