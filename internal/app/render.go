package app

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"todolists/internal/lists"
)

//go:embed templates/*.html static/*.js static/*.css
var assetsFS embed.FS

var pages = []string{"lists", "new_list", "list", "edit_list"}

type pageVM struct {
	Title   string
	Success string
	Error   string

	Lists []lists.List
	List  *lists.List
	Todos []lists.Todo

	// Form values echoed back after a rejected submission.
	ListName string
	TodoText string
}

type views map[string]*template.Template

func parseViews() (views, error) {
	out := make(views, len(pages))
	for _, page := range pages {
		tmpl, err := template.New(page).ParseFS(assetsFS, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("parse view %s: %w", page, err)
		}
		out[page] = tmpl
	}
	return out, nil
}

func (v views) render(w io.Writer, page string, vm pageVM) error {
	tmpl, ok := v[page]
	if !ok {
		return fmt.Errorf("unknown view %q", page)
	}
	return tmpl.ExecuteTemplate(w, "layout", vm)
}
